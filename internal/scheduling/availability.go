package scheduling

import (
	"sort"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// SystemSet is a set of system names.
type SystemSet map[string]struct{}

// Has reports membership.
func (s SystemSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members sorted by name.
func (s SystemSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Availability is the resolver output for one target window.
type Availability struct {
	Window    Window
	Available []models.System
	Busy      SystemSet
}

// IsAvailable reports whether the named system can take a seat in the window.
func (a Availability) IsAvailable(name string) bool {
	for _, s := range a.Available {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Resolve classifies the institute's systems for the target window.
//
// Every other exam on the same date (skipping excludeExamID, cancelled and completed exams)
// whose buffer-extended window conflicts with the buffer-extended target marks the systems
// held by its active assignments as busy. Available systems are those whose hardware is up
// and that are not busy, in inventory order.
func Resolve(target Window, bufferMinutes int, examsOnDate []models.Exam, systems []models.System, excludeExamID string) (Availability, error) {
	busy := make(SystemSet)
	for i := range examsOnDate {
		other := &examsOnDate[i]
		if !blocksSystems(other, target.Date, excludeExamID) {
			continue
		}
		w, err := ExamWindow(other)
		if err != nil {
			return Availability{}, err
		}
		if !Conflicts(target, w, bufferMinutes) {
			continue
		}
		for _, a := range other.Assignments {
			if a.Occupies() {
				busy[a.SystemName] = struct{}{}
			}
		}
	}

	available := make([]models.System, 0, len(systems))
	for _, s := range systems {
		if s.HardwareUp() && !busy.Has(s.Name) {
			available = append(available, s)
		}
	}
	return Availability{Window: target, Available: available, Busy: busy}, nil
}

func blocksSystems(exam *models.Exam, date, excludeExamID string) bool {
	if exam.ID != "" && exam.ID == excludeExamID {
		return false
	}
	if exam.Status == models.ExamStatusCancelled || exam.Status == models.ExamStatusCompleted {
		return false
	}
	return exam.Date == date
}

// substitute returns exams with entries replaced by id; a nil replacement drops the entry.
func substitute(exams []models.Exam, replacements map[string]*models.Exam) []models.Exam {
	out := make([]models.Exam, 0, len(exams)+len(replacements))
	seen := make(map[string]bool, len(replacements))
	for _, e := range exams {
		if r, ok := replacements[e.ID]; ok {
			seen[e.ID] = true
			if r != nil {
				out = append(out, *r)
			}
			continue
		}
		out = append(out, e)
	}
	for id, r := range replacements {
		if !seen[id] && r != nil {
			out = append(out, *r)
		}
	}
	return out
}
