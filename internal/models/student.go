package models

// Student is the roster view of a learner needed for seating and seat-plan exports.
type Student struct {
	ID          string `db:"id" json:"id"`
	InstituteID string `db:"institute_id" json:"instituteId"`
	RollNumber  string `db:"roll_number" json:"rollNumber"`
	FullName    string `db:"full_name" json:"fullName"`
}

// StudentIDs extracts identifiers preserving order.
func StudentIDs(students []Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}
