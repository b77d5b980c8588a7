package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// RescheduleRequest moves a subset of an exam's students to a new sitting.
type RescheduleRequest struct {
	StudentIDs []string
	Date       string
	// StartTime defaults to the companion's start time, then the source exam's.
	StartTime string
	Reason    string
	// Systems optionally pins students to systems on the new window.
	Systems map[string]string
}

// Environment carries collaborator data for one reschedule computation.
type Environment struct {
	Hours   models.OperatingHours
	Systems []models.System
	// ExamsOnDate holds every exam of the institute on the date being checked.
	ExamsOnDate []models.Exam
	Now         func() time.Time
	NewID       func() string
}

func (e Environment) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Environment) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// RescheduleResult holds the mutated source and companion exams to commit together.
type RescheduleResult struct {
	Source           *models.Exam
	Companion        *models.Exam
	CompanionCreated bool
	Moved            []string
	Updated          []string
}

// UndoResult holds the restored source and the pruned companion.
type UndoResult struct {
	Source          *models.Exam
	Companion       *models.Exam
	Restored        []string
	Removed         []string
	DeleteCompanion bool
}

// BulkReschedule moves students from their original seat to the companion exam, creating the
// companion on first use. The source may be completed; a completed companion may not.
// A student already rescheduled must be restored with UndoReschedule first.
func BulkReschedule(source, companion *models.Exam, req RescheduleRequest, env Environment) (*RescheduleResult, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if err := checkPair(source, companion); err != nil {
		return nil, err
	}
	if companion.IsCompleted() {
		return nil, ErrImmutableExam
	}
	for _, id := range req.StudentIDs {
		idx := source.FindAssignment(id)
		if idx < 0 {
			return nil, &NotInRosterError{StudentID: id}
		}
		if source.Assignments[idx].IsRescheduled || companion.FindAssignment(id) >= 0 {
			return nil, &AlreadyRescheduledError{StudentID: id}
		}
	}

	startTime := req.StartTime
	if startTime == "" && companion != nil {
		startTime = companion.StartTime
	}
	if startTime == "" {
		startTime = source.StartTime
	}
	window, err := WindowFor(req.Date, startTime, source.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if companion != nil && !sameSitting(companion, window) {
		return nil, invalid("rescheduleDate", "students of this exam are already rescheduled to %s %s; edit the reschedule to move the group", companion.Date, companion.StartTime)
	}
	if err := ValidateWithinHours(window, env.Hours); err != nil {
		return nil, err
	}

	src := source.Clone()
	comp := companion.Clone()
	created := false
	if comp == nil {
		comp = newCompanion(source, window, env)
		created = true
	}
	fresh := make(map[string]bool, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		moveToCompanion(src, comp, id, req.Reason, env)
		fresh[id] = true
	}
	if err := placeCompanionSeats(src, comp, window, req.Systems, fresh, env); err != nil {
		return nil, err
	}
	return &RescheduleResult{
		Source:           src,
		Companion:        comp,
		CompanionCreated: created,
		Moved:            append([]string(nil), req.StudentIDs...),
	}, nil
}

// UpdateReschedule edits an existing reschedule group: it overwrites date and reason for students
// already moved and moves newly selected students still seated in the source exam.
func UpdateReschedule(source, companion *models.Exam, req RescheduleRequest, env Environment) (*RescheduleResult, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if err := checkPair(source, companion); err != nil {
		return nil, err
	}
	if companion == nil {
		return nil, ErrNoCompanion
	}
	if companion.IsCompleted() {
		return nil, ErrImmutableExam
	}

	startTime := req.StartTime
	if startTime == "" {
		startTime = companion.StartTime
	}
	window, err := WindowFor(req.Date, startTime, source.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if err := ValidateWithinHours(window, env.Hours); err != nil {
		return nil, err
	}

	src := source.Clone()
	comp := companion.Clone()
	fresh := make(map[string]bool)
	var moved, updated []string
	for _, id := range req.StudentIDs {
		srcIdx := src.FindAssignment(id)
		compIdx := comp.FindAssignment(id)
		switch {
		case compIdx >= 0:
			reason := req.Reason
			comp.Assignments[compIdx].RescheduledReason = &reason
			if srcIdx >= 0 {
				srcReason := req.Reason
				src.Assignments[srcIdx].RescheduledReason = &srcReason
			}
			updated = append(updated, id)
		case srcIdx < 0:
			return nil, &NotInRosterError{StudentID: id}
		case src.Assignments[srcIdx].IsRescheduled:
			return nil, &AlreadyRescheduledError{StudentID: id}
		default:
			moveToCompanion(src, comp, id, req.Reason, env)
			fresh[id] = true
			moved = append(moved, id)
		}
	}
	if err := placeCompanionSeats(src, comp, window, req.Systems, fresh, env); err != nil {
		return nil, err
	}
	return &RescheduleResult{Source: src, Companion: comp, Moved: moved, Updated: updated}, nil
}

// UndoReschedule restores every rescheduled student of the source exam to their original seat and
// removes their companion seats. Restored seats must still be free in the source window.
func UndoReschedule(source, companion *models.Exam, env Environment) (*UndoResult, error) {
	if err := checkPair(source, companion); err != nil {
		return nil, err
	}
	if source.IsCompleted() {
		return nil, ErrImmutableExam
	}
	if companion == nil {
		return nil, ErrNoCompanion
	}
	if companion.IsCompleted() {
		return nil, ErrImmutableExam
	}

	src := source.Clone()
	comp := companion.Clone()
	restored := make(map[string]bool)
	var restoredIDs []string
	for i := range src.Assignments {
		seat := &src.Assignments[i]
		if seat.Kind != models.AssignmentKindRegular || !seat.IsRescheduled {
			continue
		}
		seat.IsRescheduled = false
		seat.RescheduledReason = nil
		seat.Attended = seat.PriorAttended != nil && *seat.PriorAttended
		seat.PriorAttended = nil
		restored[seat.StudentID] = true
		restoredIDs = append(restoredIDs, seat.StudentID)
	}
	if len(restoredIDs) == 0 {
		return nil, ErrNoCompanion
	}

	kept := make([]models.SystemAssignment, 0, len(comp.Assignments))
	var removed []string
	for _, a := range comp.Assignments {
		if restored[a.StudentID] {
			removed = append(removed, a.StudentID)
			continue
		}
		kept = append(kept, a)
	}
	comp.Assignments = kept
	deleteCompanion := len(kept) == 0

	if err := checkRestoredSeats(src, comp, deleteCompanion, restored, env); err != nil {
		return nil, err
	}
	return &UndoResult{
		Source:          src,
		Companion:       comp,
		Restored:        restoredIDs,
		Removed:         removed,
		DeleteCompanion: deleteCompanion,
	}, nil
}

// GroupMember describes one student of a reschedule group.
type GroupMember struct {
	StudentID         string  `json:"studentId"`
	OriginalSystem    string  `json:"originalSystem"`
	CompanionSystem   string  `json:"companionSystem"`
	Reason            *string `json:"reason,omitempty"`
	OriginalDate      *string `json:"originalDate,omitempty"`
	OriginalStartTime *string `json:"originalStartTime,omitempty"`
}

// RescheduleGroup is the view joining a source exam's rescheduled seats with its companion seats.
type RescheduleGroup struct {
	SourceExamID    string        `json:"sourceExamId"`
	CompanionExamID string        `json:"companionExamId,omitempty"`
	Date            string        `json:"date,omitempty"`
	StartTime       string        `json:"startTime,omitempty"`
	EndTime         string        `json:"endTime,omitempty"`
	Status          string        `json:"status,omitempty"`
	Members         []GroupMember `json:"members"`
}

// BuildGroup assembles the reschedule group view. A nil companion yields an empty group.
func BuildGroup(source, companion *models.Exam) RescheduleGroup {
	group := RescheduleGroup{SourceExamID: source.ID, Members: []GroupMember{}}
	if companion == nil {
		return group
	}
	group.CompanionExamID = companion.ID
	group.Date = companion.Date
	group.StartTime = companion.StartTime
	group.EndTime = companion.EndTime
	group.Status = string(companion.Status)
	for _, seat := range companion.Assignments {
		member := GroupMember{
			StudentID:         seat.StudentID,
			CompanionSystem:   seat.SystemName,
			Reason:            seat.RescheduledReason,
			OriginalDate:      seat.OriginalDate,
			OriginalStartTime: seat.OriginalStartTime,
		}
		if idx := source.FindAssignment(seat.StudentID); idx >= 0 {
			member.OriginalSystem = source.Assignments[idx].SystemName
		}
		group.Members = append(group.Members, member)
	}
	return group
}

func (r RescheduleRequest) normalize() (RescheduleRequest, error) {
	out := RescheduleRequest{
		Date:      strings.TrimSpace(r.Date),
		StartTime: strings.TrimSpace(r.StartTime),
		Reason:    strings.TrimSpace(r.Reason),
	}
	if len(r.StudentIDs) == 0 {
		return out, invalid("studentIds", "at least one student is required")
	}
	if out.Date == "" {
		return out, invalid("rescheduleDate", "is required")
	}
	if out.Reason == "" {
		return out, invalid("reason", "is required")
	}
	seen := make(map[string]bool, len(r.StudentIDs))
	for _, id := range r.StudentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return out, invalid("studentIds", "student id must not be empty")
		}
		if seen[id] {
			return out, &DuplicateStudentError{StudentID: id}
		}
		seen[id] = true
		out.StudentIDs = append(out.StudentIDs, id)
	}
	if len(r.Systems) > 0 {
		out.Systems = make(map[string]string, len(r.Systems))
		for student, system := range r.Systems {
			out.Systems[strings.TrimSpace(student)] = strings.TrimSpace(system)
		}
	}
	return out, nil
}

func checkPair(source, companion *models.Exam) error {
	if source == nil {
		return invalid("examId", "source exam is required")
	}
	if source.IsCompanion() {
		return invalid("examId", "exam %s hosts rescheduled students; use its original exam", source.ID)
	}
	if source.Status == models.ExamStatusCancelled {
		return invalid("examId", "exam %s is cancelled", source.ID)
	}
	if companion != nil && (!companion.IsCompanion() || companion.SourceExamID == nil || *companion.SourceExamID != source.ID) {
		return invalid("examId", "exam %s is not the reschedule companion of %s", companion.ID, source.ID)
	}
	return nil
}

func sameSitting(exam *models.Exam, w Window) bool {
	start, err := models.ParseClock(exam.StartTime)
	if err != nil {
		return false
	}
	return exam.Date == w.Date && start == w.Start
}

func newCompanion(source *models.Exam, w Window, env Environment) *models.Exam {
	now := env.now()
	sourceID := source.ID
	return &models.Exam{
		ID:              env.newID(),
		InstituteID:     source.InstituteID,
		CourseID:        source.CourseID,
		Title:           source.Title + models.CompanionTitleSuffix,
		Type:            source.Type,
		Kind:            models.ExamKindRescheduleCompanion,
		SourceExamID:    &sourceID,
		Date:            w.Date,
		StartTime:       w.StartTime(),
		EndTime:         w.EndTime(),
		DurationMinutes: source.DurationMinutes,
		TotalMarks:      source.TotalMarks,
		Status:          models.ExamStatusScheduled,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// moveToCompanion flips the source seat to rescheduled and appends a reschedule slot that
// carries the original system as its preferred seat.
func moveToCompanion(src, comp *models.Exam, studentID, reason string, env Environment) {
	seat := &src.Assignments[src.FindAssignment(studentID)]
	prior := seat.Attended
	seat.PriorAttended = &prior
	seat.Attended = false
	seat.IsRescheduled = true
	srcReason := reason
	seat.RescheduledReason = &srcReason

	slotReason := reason
	originalDate := src.Date
	originalStart := src.StartTime
	comp.Assignments = append(comp.Assignments, models.SystemAssignment{
		ID:                env.newID(),
		ExamID:            comp.ID,
		StudentID:         studentID,
		SystemName:        seat.SystemName,
		Kind:              models.AssignmentKindRescheduleSlot,
		IsRescheduled:     true,
		RescheduledReason: &slotReason,
		OriginalDate:      &originalDate,
		OriginalStartTime: &originalStart,
		CreatedAt:         env.now(),
	})
}

// placeCompanionSeats seats every companion student on a system free in the new window.
// Pinned systems win, then seats already held by earlier members, then each newly moved
// student's original system, then the first free system in inventory order.
func placeCompanionSeats(src, comp *models.Exam, w Window, pinned map[string]string, fresh map[string]bool, env Environment) error {
	exams := substitute(env.ExamsOnDate, map[string]*models.Exam{src.ID: src, comp.ID: nil})
	avail, err := Resolve(w, env.Hours.BufferMinutes, exams, env.Systems, comp.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(env.Systems))
	for _, s := range env.Systems {
		known[s.Name] = true
	}
	free := make(map[string]bool, len(avail.Available))
	for _, s := range avail.Available {
		free[s.Name] = true
	}

	taken := make(map[string]bool)
	placed := make([]bool, len(comp.Assignments))
	seat := func(i int, name string) {
		comp.Assignments[i].SystemName = name
		taken[name] = true
		placed[i] = true
	}

	for student := range pinned {
		if comp.FindAssignment(student) < 0 {
			return invalid("systems", "student %s is not part of the reschedule group", student)
		}
	}
	for i, a := range comp.Assignments {
		name, ok := pinned[a.StudentID]
		if !ok || name == "" {
			continue
		}
		if !known[name] {
			return &UnknownSystemError{SystemName: name}
		}
		if !free[name] || taken[name] {
			return &SystemBusyError{SystemName: name}
		}
		seat(i, name)
	}
	for _, newcomers := range []bool{false, true} {
		for i, a := range comp.Assignments {
			if placed[i] || fresh[a.StudentID] != newcomers {
				continue
			}
			if a.SystemName != "" && free[a.SystemName] && !taken[a.SystemName] {
				seat(i, a.SystemName)
			}
		}
	}
	next := 0
	for i := range comp.Assignments {
		if placed[i] {
			continue
		}
		for next < len(avail.Available) && taken[avail.Available[next].Name] {
			next++
		}
		if next >= len(avail.Available) {
			return &CapacityError{Need: len(comp.Assignments), Have: len(avail.Available)}
		}
		seat(i, avail.Available[next].Name)
	}

	comp.Date = w.Date
	comp.StartTime = w.StartTime()
	comp.EndTime = w.EndTime()
	comp.UpdatedAt = env.now()
	return nil
}

// checkRestoredSeats makes sure restoring seats does not double-book a system, either inside the
// source exam or against another exam within the buffer.
func checkRestoredSeats(src, comp *models.Exam, deleteCompanion bool, restored map[string]bool, env Environment) error {
	holders := make(map[string]int)
	for _, a := range src.Assignments {
		if a.Occupies() {
			holders[a.SystemName]++
		}
	}
	for _, a := range src.Assignments {
		if restored[a.StudentID] && holders[a.SystemName] > 1 {
			return &SystemBusyError{SystemName: a.SystemName}
		}
	}

	w, err := ExamWindow(src)
	if err != nil {
		return err
	}
	replacement := comp
	if deleteCompanion {
		replacement = nil
	}
	exams := substitute(env.ExamsOnDate, map[string]*models.Exam{src.ID: nil, comp.ID: replacement})
	avail, err := Resolve(w, env.Hours.BufferMinutes, exams, env.Systems, src.ID)
	if err != nil {
		return err
	}
	for _, a := range src.Assignments {
		if restored[a.StudentID] && avail.Busy.Has(a.SystemName) {
			return &SystemBusyError{SystemName: a.SystemName}
		}
	}
	return nil
}
