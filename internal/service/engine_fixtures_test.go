package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/pkg/config"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

// examStoreStub keeps exams in memory and enforces the version check of the real store.
type examStoreStub struct {
	mu        sync.Mutex
	exams     map[string]*models.Exam
	order     []string
	reads     int
	createErr error
	saveErr   error
	created   []string
	saved     []string
	deleted   []string
}

func newExamStoreStub(exams ...models.Exam) *examStoreStub {
	s := &examStoreStub{exams: make(map[string]*models.Exam)}
	for i := range exams {
		s.put(exams[i].Clone())
	}
	return s
}

func (s *examStoreStub) put(exam *models.Exam) {
	if _, ok := s.exams[exam.ID]; !ok {
		s.order = append(s.order, exam.ID)
	}
	s.exams[exam.ID] = exam
}

func (s *examStoreStub) get(id string) *models.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exams[id].Clone()
}

func (s *examStoreStub) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	var out []models.Exam
	for _, id := range s.order {
		exam, ok := s.exams[id]
		if !ok || exam.InstituteID != filter.InstituteID {
			continue
		}
		if filter.Date != "" && exam.Date != filter.Date {
			continue
		}
		out = append(out, *exam.Clone())
	}
	return out, nil
}

func (s *examStoreStub) ListByInstituteDate(ctx context.Context, instituteID, date string) ([]models.Exam, error) {
	return s.List(ctx, models.ExamFilter{InstituteID: instituteID, Date: date})
}

func (s *examStoreStub) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	exam, ok := s.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return exam.Clone(), nil
}

func (s *examStoreStub) FindCompanion(ctx context.Context, sourceExamID string) (*models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		exam, ok := s.exams[id]
		if ok && exam.SourceExamID != nil && *exam.SourceExamID == sourceExamID {
			return exam.Clone(), nil
		}
	}
	return nil, nil
}

func (s *examStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if exam.Version == 0 {
		exam.Version = 1
	}
	s.created = append(s.created, exam.ID)
	s.put(exam.Clone())
	return nil
}

func (s *examStoreStub) Save(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	current, ok := s.exams[exam.ID]
	if !ok || current.Version != exam.Version {
		return appErrors.ErrOptimisticLock
	}
	exam.Version++
	s.saved = append(s.saved, exam.ID)
	s.put(exam.Clone())
	return nil
}

func (s *examStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.exams[id]
	if !ok || current.Version != version {
		return appErrors.ErrOptimisticLock
	}
	delete(s.exams, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type instituteStub struct {
	systems  []models.System
	settings *models.InstituteSettings
}

func (s instituteStub) ListSystems(ctx context.Context, instituteID string) ([]models.System, error) {
	return s.systems, nil
}

func (s instituteStub) FindSettings(ctx context.Context, instituteID string) (*models.InstituteSettings, error) {
	if s.settings == nil {
		return nil, sql.ErrNoRows
	}
	return s.settings, nil
}

type auditStub struct {
	entries []models.AuditLog
	err     error
}

func (a *auditStub) Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *log)
	return nil
}

type rosterStub struct {
	students []models.Student
}

func (r rosterStub) ListEligible(ctx context.Context, instituteID, courseID string) ([]models.Student, error) {
	return r.students, nil
}

func (r rosterStub) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Student
	for _, st := range r.students {
		if want[st.ID] {
			out = append(out, st)
		}
	}
	return out, nil
}

// memoryCache is a CacheRepository backed by a map of JSON payloads.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := pattern[:len(pattern)-1]
	for key := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.entries, key)
		}
	}
	return nil
}

var testActor = models.Actor{UserID: "admin-1", InstituteID: "inst-1"}

// 2024-03-11 is a Monday.
const testDate = "2024-03-11"

func testDefaults() config.SchedulingConfig {
	return config.SchedulingConfig{
		DefaultOpening:       "09:00",
		DefaultClosing:       "18:00",
		DefaultBufferMinutes: 30,
		DefaultWorkingDays:   []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
	}
}

func testSystems(n int) []models.System {
	systems := make([]models.System, 0, n)
	for i := 1; i <= n; i++ {
		systems = append(systems, models.System{
			ID:          fmt.Sprintf("sys-%d", i),
			InstituteID: "inst-1",
			Name:        fmt.Sprintf("Sys-%d", i),
			Status:      models.SystemStatusAvailable,
		})
	}
	return systems
}

// testExam seats the given students on Sys-1, Sys-2, ... in order.
func testExam(id, date, start string, duration int, students ...string) models.Exam {
	exam := models.Exam{
		ID:              id,
		InstituteID:     "inst-1",
		CourseID:        "course-1",
		Title:           "Maths",
		Type:            models.ExamTypeFinal,
		Kind:            models.ExamKindOriginal,
		Date:            date,
		StartTime:       start,
		DurationMinutes: duration,
		TotalMarks:      100,
		Status:          models.ExamStatusScheduled,
		Version:         1,
	}
	for i, student := range students {
		seat := models.NewRegularAssignment(student, fmt.Sprintf("Sys-%d", i+1), 1)
		seat.ID = fmt.Sprintf("%s-a%d", id, i+1)
		seat.ExamID = id
		exam.Assignments = append(exam.Assignments, seat)
	}
	return exam
}

func requireAppError(t *testing.T, err error, want *appErrors.Error) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, want.Code, appErr.Code, appErr.Error())
	return appErr
}
