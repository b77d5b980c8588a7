package scheduling

import (
	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// DefaultSection is the section given to automatically seated students.
const DefaultSection = 1

// Plan is a draft set of seat assignments for one exam.
type Plan struct {
	assignments []models.SystemAssignment
}

// NewPlan starts a plan from existing assignments.
func NewPlan(existing []models.SystemAssignment) *Plan {
	p := &Plan{assignments: make([]models.SystemAssignment, 0, len(existing))}
	for _, a := range existing {
		p.assignments = append(p.assignments, a.Clone())
	}
	return p
}

// AutoAllocate seats students on available systems in input order: the first student takes the
// first available system. It fails without retrying when there are fewer systems than students.
func AutoAllocate(studentIDs []string, available []models.System) (*Plan, error) {
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if id == "" {
			return nil, invalid("studentIds", "student id must not be empty")
		}
		if seen[id] {
			return nil, &DuplicateStudentError{StudentID: id}
		}
		seen[id] = true
	}
	if len(available) < len(studentIDs) {
		return nil, &CapacityError{Need: len(studentIDs), Have: len(available)}
	}
	p := &Plan{assignments: make([]models.SystemAssignment, 0, len(studentIDs))}
	for i, id := range studentIDs {
		p.assignments = append(p.assignments, models.NewRegularAssignment(id, available[i].Name, DefaultSection))
	}
	return p, nil
}

// ManualAssign places a student on a system, replacing any prior entry for that student.
// Duplicate systems are tolerated here and rejected by ValidateAssignments at commit time.
func (p *Plan) ManualAssign(studentID, systemName string) {
	for i := range p.assignments {
		if p.assignments[i].StudentID == studentID {
			p.assignments[i].SystemName = systemName
			return
		}
	}
	p.assignments = append(p.assignments, models.NewRegularAssignment(studentID, systemName, DefaultSection))
}

// Assignments returns a copy of the planned seats.
func (p *Plan) Assignments() []models.SystemAssignment {
	out := make([]models.SystemAssignment, len(p.assignments))
	for i, a := range p.assignments {
		out[i] = a.Clone()
	}
	return out
}

// Conflicts returns the system names currently held by more than one active seat in the plan.
func (p *Plan) Conflicts() SystemSet {
	counts := make(map[string]int)
	for _, a := range p.assignments {
		if a.Occupies() {
			counts[a.SystemName]++
		}
	}
	dup := make(SystemSet)
	for name, n := range counts {
		if n > 1 {
			dup[name] = struct{}{}
		}
	}
	return dup
}

// ValidateAssignments runs the commit-time checks, in order: every student has a system,
// no system is held twice among active seats, no student appears twice, and the exam is
// not completed.
func ValidateAssignments(exam *models.Exam, assignments []models.SystemAssignment) error {
	var unassigned []string
	for _, a := range assignments {
		if a.Kind == models.AssignmentKindRegular && !a.IsRescheduled && a.SystemName == "" {
			unassigned = append(unassigned, a.StudentID)
		}
	}
	if len(unassigned) > 0 {
		return &UnassignedStudentsError{StudentIDs: unassigned}
	}

	holders := make(map[string][]string)
	var order []string
	for _, a := range assignments {
		if !a.Occupies() {
			continue
		}
		if _, ok := holders[a.SystemName]; !ok {
			order = append(order, a.SystemName)
		}
		holders[a.SystemName] = append(holders[a.SystemName], a.StudentID)
	}
	for _, name := range order {
		if len(holders[name]) > 1 {
			return &DuplicateSystemError{SystemName: name, StudentIDs: holders[name]}
		}
	}

	students := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if students[a.StudentID] {
			return &DuplicateStudentError{StudentID: a.StudentID}
		}
		students[a.StudentID] = true
	}

	if exam.IsCompleted() {
		return ErrImmutableExam
	}
	return nil
}

// CheckSystemsFree verifies every active seat uses a known system that is free in the window.
func CheckSystemsFree(assignments []models.SystemAssignment, availability Availability, inventory []models.System) error {
	known := make(map[string]bool, len(inventory))
	for _, s := range inventory {
		known[s.Name] = true
	}
	for _, a := range assignments {
		if !a.Occupies() {
			continue
		}
		if !known[a.SystemName] {
			return &UnknownSystemError{SystemName: a.SystemName}
		}
		if !availability.IsAvailable(a.SystemName) {
			return &SystemBusyError{SystemName: a.SystemName}
		}
	}
	return nil
}
