package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
)

type stubSessionStore struct {
	created    []repository.CreateSessionInput
	nextID     int64
	existsFn   func(scheduledDate time.Time) bool
	lastNumber int
}

func (s *stubSessionStore) Create(_ context.Context, input repository.CreateSessionInput) (*models.Session, error) {
	s.created = append(s.created, input)
	s.nextID++
	return &models.Session{
		ID:            s.nextID,
		AllocationID:  input.AllocationID,
		ScheduledDate: input.ScheduledDate,
		ScheduledTime: input.ScheduledTime,
		SessionNumber: input.SessionNumber,
	}, nil
}

func (s *stubSessionStore) Exists(_ context.Context, _, _, _ int64, scheduledDate time.Time, _ string) (bool, error) {
	if s.existsFn == nil {
		return false, nil
	}
	return s.existsFn(scheduledDate), nil
}

func (s *stubSessionStore) LastSessionNumber(_ context.Context, _ int64) (int, error) {
	return s.lastNumber, nil
}

func newTestGenerator(store *stubSessionStore, students *stubStudentReader, now time.Time) *ScheduleGenerator {
	return &ScheduleGenerator{
		sessions: store,
		students: students,
		cfg:      DefaultEngineConfig(),
		logger:   zap.NewNop(),
		now:      func() time.Time { return now },
	}
}

func approvedAllocation(trainerID int64, startDate time.Time, mode string, count int) *models.Allocation {
	return &models.Allocation{
		ID:        100,
		StudentID: 42,
		TrainerID: &trainerID,
		Status:    models.AllocationStatusApproved,
		Schedule: models.ScheduleConfig{
			TimeSlot:       "4:00 PM",
			StartDate:      startDate,
			RecurrenceMode: mode,
			SessionCount:   count,
		},
	}
}

func geoStudents() *stubStudentReader {
	return &stubStudentReader{students: map[int64]*models.Student{
		42: geocodedStudent(42, 12.9716, 77.5946),
	}}
}

// 2026-11-02 is a Monday inside the Sunday holiday window.
var mondayStart = time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

func TestGenerateDailySkipsSundaysInsideHolidayWindow(t *testing.T) {
	store := &stubSessionStore{}
	generator := newTestGenerator(store, geoStudents(), mondayStart.AddDate(0, 0, -1))

	summary, err := generator.Generate(context.Background(), approvedAllocation(7, mondayStart, models.RecurrenceDaily, 10), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if summary.Created != 10 || summary.Duplicates != 0 {
		t.Fatalf("expected 10 created, got created=%d duplicates=%d", summary.Created, summary.Duplicates)
	}
	if !summary.FirstDate.Equal(mondayStart) {
		t.Fatalf("expected first date %v, got %v", mondayStart, summary.FirstDate)
	}
	// Ten daily sessions from Mon Nov 2 skip Sun Nov 8 and end Thu Nov 12.
	wantLast := time.Date(2026, 11, 12, 0, 0, 0, 0, time.UTC)
	if !summary.LastDate.Equal(wantLast) {
		t.Fatalf("expected last date %v, got %v", wantLast, summary.LastDate)
	}
	for _, input := range store.created {
		if input.ScheduledDate.Weekday() == time.Sunday {
			t.Fatalf("scheduled a session on Sunday %v inside holiday window", input.ScheduledDate)
		}
	}
}

func TestGenerateDailyIncludesSundaysAfterHolidayWindow(t *testing.T) {
	// 2027-01-04 is a Monday past the default 2026-12-31 cutoff.
	start := time.Date(2027, 1, 4, 0, 0, 0, 0, time.UTC)
	store := &stubSessionStore{}
	generator := newTestGenerator(store, geoStudents(), start.AddDate(0, 0, -1))

	summary, err := generator.Generate(context.Background(), approvedAllocation(7, start, models.RecurrenceDaily, 10), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary.Created != 10 {
		t.Fatalf("expected 10 created, got %d", summary.Created)
	}
	sawSunday := false
	for _, input := range store.created {
		if input.ScheduledDate.Weekday() == time.Sunday {
			sawSunday = true
		}
	}
	if !sawSunday {
		t.Fatalf("expected consecutive dates to include a Sunday after the holiday window")
	}
	wantLast := start.AddDate(0, 0, 9)
	if !summary.LastDate.Equal(wantLast) {
		t.Fatalf("expected last date %v, got %v", wantLast, summary.LastDate)
	}
}

func TestGenerateSundayOnlyLandsOnConsecutiveSundays(t *testing.T) {
	// Start on a Wednesday; the first session must land on the next Sunday.
	start := time.Date(2026, 11, 4, 0, 0, 0, 0, time.UTC)
	store := &stubSessionStore{}
	generator := newTestGenerator(store, geoStudents(), start.AddDate(0, 0, -1))

	summary, err := generator.Generate(context.Background(), approvedAllocation(7, start, models.RecurrenceSundayOnly, 3), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary.Created != 3 {
		t.Fatalf("expected 3 created, got %d", summary.Created)
	}
	want := []time.Time{
		time.Date(2026, 11, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 11, 22, 0, 0, 0, 0, time.UTC),
	}
	for i, input := range store.created {
		if !input.ScheduledDate.Equal(want[i]) {
			t.Fatalf("session %d expected %v, got %v", i, want[i], input.ScheduledDate)
		}
		if input.DurationMinutes != 80 {
			t.Fatalf("expected 80 minute sunday session, got %d", input.DurationMinutes)
		}
	}
}

func TestGenerateCountsDuplicatesTowardTarget(t *testing.T) {
	// The first two candidate dates already have sessions from an earlier
	// partial run; a retry must converge without erroring or overshooting.
	dupUntil := mondayStart.AddDate(0, 0, 1)
	store := &stubSessionStore{
		existsFn: func(date time.Time) bool { return !date.After(dupUntil) },
	}
	generator := newTestGenerator(store, geoStudents(), mondayStart.AddDate(0, 0, -1))

	summary, err := generator.Generate(context.Background(), approvedAllocation(7, mondayStart, models.RecurrenceDaily, 10), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary.Created != 8 || summary.Duplicates != 2 {
		t.Fatalf("expected 8 created and 2 duplicates, got %d and %d", summary.Created, summary.Duplicates)
	}
	// Numbering continues past the duplicate dates.
	if store.created[0].SessionNumber != 3 {
		t.Fatalf("expected first created session numbered 3, got %d", store.created[0].SessionNumber)
	}
	last := store.created[len(store.created)-1]
	if last.SessionNumber != 10 || last.TotalSessions != 10 {
		t.Fatalf("expected last session 10/10, got %d/%d", last.SessionNumber, last.TotalSessions)
	}
}

func TestGenerateFailsFastWithoutHomeCoordinates(t *testing.T) {
	store := &stubSessionStore{}
	students := &stubStudentReader{students: map[int64]*models.Student{
		42: {ID: 42, FullName: "Student"},
	}}
	generator := newTestGenerator(store, students, mondayStart.AddDate(0, 0, -1))

	_, err := generator.Generate(context.Background(), approvedAllocation(7, mondayStart, models.RecurrenceDaily, 10), GenerateOptions{})
	if !errors.Is(err, ErrMissingHomeLocation) {
		t.Fatalf("expected ErrMissingHomeLocation, got %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no sessions created, got %d", len(store.created))
	}
}

func TestGenerateRejectsUncommittedAllocation(t *testing.T) {
	allocation := approvedAllocation(7, mondayStart, models.RecurrenceDaily, 10)
	allocation.Status = models.AllocationStatusPending
	generator := newTestGenerator(&stubSessionStore{}, geoStudents(), mondayStart)

	if _, err := generator.Generate(context.Background(), allocation, GenerateOptions{}); !errors.Is(err, ErrAllocationNotCommitted) {
		t.Fatalf("expected ErrAllocationNotCommitted, got %v", err)
	}
}

func TestGenerateRejectsAllocationWithoutTrainer(t *testing.T) {
	allocation := approvedAllocation(7, mondayStart, models.RecurrenceDaily, 10)
	allocation.TrainerID = nil
	generator := newTestGenerator(&stubSessionStore{}, geoStudents(), mondayStart)

	if _, err := generator.Generate(context.Background(), allocation, GenerateOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGenerateStopsAtAttemptBudget(t *testing.T) {
	// All candidate dates fall in the past, so every attempt is skipped and
	// the run reports zero sessions instead of looping forever.
	store := &stubSessionStore{}
	generator := newTestGenerator(store, geoStudents(), time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))

	summary, err := generator.Generate(context.Background(), approvedAllocation(7, mondayStart, models.RecurrenceDaily, 10), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary.Created != 0 || summary.Duplicates != 0 {
		t.Fatalf("expected empty run, got created=%d duplicates=%d", summary.Created, summary.Duplicates)
	}
}

func TestGenerateHonorsIncrementalOptions(t *testing.T) {
	store := &stubSessionStore{lastNumber: 10}
	start := time.Date(2026, 11, 16, 0, 0, 0, 0, time.UTC)
	generator := newTestGenerator(store, geoStudents(), start.AddDate(0, 0, -1))

	allocation := approvedAllocation(7, mondayStart, models.RecurrenceDaily, 20)
	summary, err := generator.Generate(context.Background(), allocation, GenerateOptions{
		Count:         10,
		StartNumber:   11,
		TotalSessions: 20,
		StartDate:     start,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary.Created != 10 {
		t.Fatalf("expected 10 created, got %d", summary.Created)
	}
	if store.created[0].SessionNumber != 11 {
		t.Fatalf("expected numbering to continue at 11, got %d", store.created[0].SessionNumber)
	}
	if store.created[0].TotalSessions != 20 {
		t.Fatalf("expected total 20, got %d", store.created[0].TotalSessions)
	}
	if !store.created[0].ScheduledDate.Equal(start) {
		t.Fatalf("expected incremental block to start %v, got %v", start, store.created[0].ScheduledDate)
	}
}

func TestGenerateSnapshotsCoordinatesAndOTP(t *testing.T) {
	store := &stubSessionStore{}
	generator := newTestGenerator(store, geoStudents(), mondayStart.AddDate(0, 0, -1))

	if _, err := generator.Generate(context.Background(), approvedAllocation(7, mondayStart, models.RecurrenceDaily, 2), GenerateOptions{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, input := range store.created {
		if input.HomeLatitude != 12.9716 || input.HomeLongitude != 77.5946 {
			t.Fatalf("expected coordinate snapshot, got %v,%v", input.HomeLatitude, input.HomeLongitude)
		}
		if len(input.OTP) != 6 {
			t.Fatalf("expected 6 digit visit code, got %q", input.OTP)
		}
		if input.DurationMinutes != 40 {
			t.Fatalf("expected 40 minute daily session, got %d", input.DurationMinutes)
		}
	}
}
