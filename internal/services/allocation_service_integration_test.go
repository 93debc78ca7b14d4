package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestAllocationServiceApproveAssignsTrainerAndGeneratesSessions(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	trainerID := seedTrainer(t, ctx, pool, 4.2, "4:00 PM", []string{"coding"})
	courseID := seedCourse(t, ctx, pool, "coding", "python")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, trainerID, courseID) })

	// A Monday well past the Sunday holiday window.
	startDate := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	allocation, created, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID:    studentID,
		CourseID:     &courseID,
		TimeSlot:     "4:00 pm",
		StartDate:    &startDate,
		SessionCount: 10,
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}
	if !created {
		t.Fatalf("expected a new allocation")
	}
	if allocation.Status != models.AllocationStatusPending {
		t.Fatalf("expected pending allocation, got %q", allocation.Status)
	}
	if allocation.Schedule.TimeSlot != "4:00 PM" {
		t.Fatalf("expected normalized slot, got %q", allocation.Schedule.TimeSlot)
	}

	approved, err := service.Approve(ctx, allocation.ID, nil, nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != models.AllocationStatusApproved {
		t.Fatalf("expected approved, got %q", approved.Status)
	}
	if approved.TrainerID == nil || *approved.TrainerID != trainerID {
		t.Fatalf("expected trainer %d bound, got %+v", trainerID, approved.TrainerID)
	}
	if approved.UsedFallback {
		t.Fatalf("strict match should not flag fallback")
	}

	count, err := repository.NewSessionRepository(pool).CountByAllocation(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("CountByAllocation: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected 10 generated sessions, got %d", count)
	}

	// Regeneration converges on the same schedule.
	summary, err := service.RegenerateSessions(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("RegenerateSessions: %v", err)
	}
	if summary.Created != 0 || summary.Duplicates != 10 {
		t.Fatalf("expected pure duplicates on regeneration, got created=%d duplicates=%d", summary.Created, summary.Duplicates)
	}
}

func TestAllocationServiceCreateMergesDuplicateRequests(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	courseID := seedCourse(t, ctx, pool, "robotics", "")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, 0, courseID) })

	first, created, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID: studentID,
		CourseID:  &courseID,
		TimeSlot:  "5:00 PM",
	})
	if err != nil || !created {
		t.Fatalf("first CreateAllocation: created=%v err=%v", created, err)
	}

	second, created, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID: studentID,
		CourseID:  &courseID,
		TimeSlot:  "5:00 PM",
	})
	if err != nil {
		t.Fatalf("second CreateAllocation: %v", err)
	}
	if created {
		t.Fatalf("expected merge into existing allocation")
	}
	if second.ID != first.ID {
		t.Fatalf("expected allocation %d, got %d", first.ID, second.ID)
	}
}

func TestAllocationServiceApproveFallsToManualReview(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	courseID := seedCourse(t, ctx, pool, "chess", "")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, 0, courseID) })

	// Nobody teaches at 3:00 AM.
	allocation, _, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID: studentID,
		CourseID:  &courseID,
		TimeSlot:  "3:00 AM",
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}

	pending, err := service.Approve(ctx, allocation.ID, nil, nil)
	if !errors.Is(err, ErrManualReviewRequired) {
		t.Fatalf("expected ErrManualReviewRequired, got %v", err)
	}
	if pending.Status != models.AllocationStatusPending {
		t.Fatalf("expected allocation to stay pending, got %q", pending.Status)
	}
	if pending.PendingReason == nil || *pending.PendingReason != ReasonNoAvailableTrainers {
		t.Fatalf("expected reason %q, got %+v", ReasonNoAvailableTrainers, pending.PendingReason)
	}
}

func TestAllocationServiceLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	trainerID := seedTrainer(t, ctx, pool, 4.8, "6:00 PM", []string{"mathematics"})
	courseID := seedCourse(t, ctx, pool, "mathematics", "")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, trainerID, courseID) })

	startDate := time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC)
	allocation, _, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID:    studentID,
		CourseID:     &courseID,
		TimeSlot:     "6:00 PM",
		StartDate:    &startDate,
		SessionCount: 10,
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}

	// Activating before approval is a stale transition.
	if _, err := service.Activate(ctx, allocation.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	if _, err := service.Approve(ctx, allocation.ID, nil, nil); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	active, err := service.Activate(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if active.Status != models.AllocationStatusActive {
		t.Fatalf("expected active, got %q", active.Status)
	}

	// Rejection is only valid from pending.
	if _, err := service.Reject(ctx, allocation.ID, nil, "changed my mind"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition on late reject, got %v", err)
	}

	completed, err := service.Complete(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != models.AllocationStatusCompleted {
		t.Fatalf("expected completed, got %q", completed.Status)
	}

	// Terminal states admit no further transitions.
	if _, err := service.Cancel(ctx, allocation.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition after completion, got %v", err)
	}
}

func TestUpgradeServiceExtendsAllocationInPlace(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)
	upgrades := newIntegrationUpgradeService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	trainerID := seedTrainer(t, ctx, pool, 4.8, "7:00 PM", []string{"science"})
	courseID := seedCourse(t, ctx, pool, "science", "")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, trainerID, courseID) })

	startDate := time.Date(2030, 9, 2, 0, 0, 0, 0, time.UTC)
	allocation, _, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID:    studentID,
		CourseID:     &courseID,
		TimeSlot:     "7:00 PM",
		StartDate:    &startDate,
		SessionCount: 10,
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}
	if _, err := service.Approve(ctx, allocation.ID, nil, nil); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	additional := 10
	result, err := upgrades.Upgrade(ctx, UpgradeInput{
		StudentID:          studentID,
		CourseID:           courseID,
		AdditionalSessions: &additional,
	})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if result.Mode != UpgradeModeExtended {
		t.Fatalf("expected in-place extension, got %q", result.Mode)
	}
	if result.Allocation.Schedule.SessionCount != 20 {
		t.Fatalf("expected session count 20, got %d", result.Allocation.Schedule.SessionCount)
	}

	count, err := repository.NewSessionRepository(pool).CountByAllocation(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("CountByAllocation: %v", err)
	}
	if count != 20 {
		t.Fatalf("expected 20 sessions after upgrade, got %d", count)
	}
}

func TestUpgradeServiceBindsReplacementTrainer(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)
	upgrades := newIntegrationUpgradeService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	// Rating 2.8 caps the current trainer at four students.
	currentTrainer := seedTrainer(t, ctx, pool, 2.8, "8:00 PM", []string{"coding"})
	replacement := seedTrainer(t, ctx, pool, 4.5, "8:00 PM", []string{"coding"})
	courseID := seedCourse(t, ctx, pool, "coding", "")

	t.Cleanup(func() { cleanupTrainer(t, ctx, pool, replacement) })
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, currentTrainer, courseID) })

	startDate := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	allocation, _, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID:    studentID,
		CourseID:     &courseID,
		TrainerID:    &currentTrainer,
		TimeSlot:     "8:00 PM",
		StartDate:    &startDate,
		SessionCount: 10,
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}
	if _, err := service.Approve(ctx, allocation.ID, nil, nil); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	fillTrainerCapacity(t, ctx, pool, currentTrainer, "8:00 PM", startDate, 3)

	additional := 10
	result, err := upgrades.Upgrade(ctx, UpgradeInput{
		StudentID:          studentID,
		CourseID:           courseID,
		AdditionalSessions: &additional,
	})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if result.Mode != UpgradeModeReplacementTrainer {
		t.Fatalf("expected replacement trainer, got %q", result.Mode)
	}
	if result.NewAllocation == nil {
		t.Fatalf("expected a second allocation")
	}
	if result.NewAllocation.UpgradedFromID == nil || *result.NewAllocation.UpgradedFromID != allocation.ID {
		t.Fatalf("expected lineage link to allocation %d, got %+v", allocation.ID, result.NewAllocation.UpgradedFromID)
	}
	if result.NewAllocation.TrainerID == nil || *result.NewAllocation.TrainerID != replacement {
		t.Fatalf("expected replacement trainer %d, got %+v", replacement, result.NewAllocation.TrainerID)
	}
	if result.NewAllocation.Status != models.AllocationStatusApproved {
		t.Fatalf("expected approved replacement allocation, got %q", result.NewAllocation.Status)
	}
	if result.NewAllocation.Schedule.SessionCount != additional {
		t.Fatalf("expected replacement block of %d sessions, got %d", additional, result.NewAllocation.Schedule.SessionCount)
	}

	// The original allocation keeps its trainer, status and session block.
	original, err := repository.NewAllocationRepository(pool).GetByID(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if original.TrainerID == nil || *original.TrainerID != currentTrainer {
		t.Fatalf("expected original trainer untouched, got %+v", original.TrainerID)
	}
	if original.Schedule.SessionCount != 10 {
		t.Fatalf("expected original session count 10, got %d", original.Schedule.SessionCount)
	}

	sessions := repository.NewSessionRepository(pool)
	originalCount, err := sessions.CountByAllocation(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("CountByAllocation original: %v", err)
	}
	if originalCount != 10 {
		t.Fatalf("expected original sessions untouched at 10, got %d", originalCount)
	}
	newCount, err := sessions.CountByAllocation(ctx, result.NewAllocation.ID)
	if err != nil {
		t.Fatalf("CountByAllocation replacement: %v", err)
	}
	if newCount != additional {
		t.Fatalf("expected exactly %d incremental sessions, got %d", additional, newCount)
	}
}

func TestUpgradeServiceExtendsWithWarningWhenNoReplacement(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)
	upgrades := newIntegrationUpgradeService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	trainerID := seedTrainer(t, ctx, pool, 2.8, "8:00 AM", []string{"violin"})
	courseID := seedCourse(t, ctx, pool, "violin", "")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, trainerID, courseID) })

	startDate := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	allocation, _, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID:    studentID,
		CourseID:     &courseID,
		TrainerID:    &trainerID,
		TimeSlot:     "8:00 AM",
		StartDate:    &startDate,
		SessionCount: 10,
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}
	if _, err := service.Approve(ctx, allocation.ID, nil, nil); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// The only qualified trainer is now at capacity.
	fillTrainerCapacity(t, ctx, pool, trainerID, "8:00 AM", startDate, 3)

	additional := 10
	result, err := upgrades.Upgrade(ctx, UpgradeInput{
		StudentID:          studentID,
		CourseID:           courseID,
		AdditionalSessions: &additional,
	})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if result.Mode != UpgradeModeExtendedWithWarning {
		t.Fatalf("expected extension with warning, got %q", result.Mode)
	}
	if result.NewAllocation != nil {
		t.Fatalf("expected no replacement allocation, got %+v", result.NewAllocation)
	}
	if !strings.HasPrefix(result.Warning, "trainer_availability_warning") {
		t.Fatalf("expected availability warning, got %q", result.Warning)
	}
	if !strings.Contains(result.Warning, reasonCapacityExhausted) {
		t.Fatalf("expected capacity reason in warning, got %q", result.Warning)
	}
	if result.Allocation.Schedule.SessionCount != 20 {
		t.Fatalf("expected session count 20, got %d", result.Allocation.Schedule.SessionCount)
	}

	count, err := repository.NewSessionRepository(pool).CountByAllocation(ctx, allocation.ID)
	if err != nil {
		t.Fatalf("CountByAllocation: %v", err)
	}
	if count != 20 {
		t.Fatalf("expected 20 sessions after warned extension, got %d", count)
	}
}

func TestAllocationServiceApproveRejectsDuplicateCommit(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationAllocationService(pool)

	studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
	trainerID := seedTrainer(t, ctx, pool, 4.8, "10:00 AM", []string{"algebra"})
	courseID := seedCourse(t, ctx, pool, "algebra", "")
	t.Cleanup(func() { cleanupScheduling(t, ctx, pool, studentID, trainerID, courseID) })

	startDate := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	first, _, err := service.CreateAllocation(ctx, CreateAllocationInput{
		StudentID:    studentID,
		CourseID:     &courseID,
		TimeSlot:     "10:00 AM",
		StartDate:    &startDate,
		SessionCount: 10,
	})
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}
	// A second pending row, as left behind by two requests racing past the
	// open-allocation check before the create lock existed.
	secondID := seedPendingAllocation(t, ctx, pool, studentID, courseID, "10:00 AM", startDate)

	if _, err := service.Approve(ctx, first.ID, nil, nil); err != nil {
		t.Fatalf("Approve first: %v", err)
	}

	if _, err := service.Approve(ctx, secondID, nil, nil); !errors.Is(err, ErrAllocationExists) {
		t.Fatalf("expected ErrAllocationExists on second approval, got %v", err)
	}

	second, err := repository.NewAllocationRepository(pool).GetByID(ctx, secondID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if second.Status != models.AllocationStatusPending {
		t.Fatalf("expected losing allocation to stay pending, got %q", second.Status)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationAllocationService(pool *pgxpool.Pool) *AllocationService {
	logger := zap.NewNop()
	cfg := DefaultEngineConfig()
	sessionRepo := repository.NewSessionRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	generator := NewScheduleGenerator(sessionRepo, studentRepo, cfg, logger)
	return NewAllocationService(
		pool,
		repository.NewAllocationRepository(pool),
		sessionRepo,
		studentRepo,
		repository.NewCourseRepository(pool),
		repository.NewPurchaseRepository(pool),
		generator,
		NewEffectRunner(logger),
		NewLogEventPublisher(logger),
		NewLogNotificationDispatcher(logger),
		NewLogPayrollLedger(logger),
		cfg,
		logger,
	)
}

func newIntegrationUpgradeService(pool *pgxpool.Pool) *UpgradeService {
	logger := zap.NewNop()
	cfg := DefaultEngineConfig()
	sessionRepo := repository.NewSessionRepository(pool)
	generator := NewScheduleGenerator(sessionRepo, repository.NewStudentRepository(pool), cfg, logger)
	return NewUpgradeService(
		pool,
		repository.NewAllocationRepository(pool),
		sessionRepo,
		repository.NewPurchaseRepository(pool),
		repository.NewCourseRepository(pool),
		generator,
		NewEffectRunner(logger),
		NewLogEventPublisher(logger),
		cfg,
		logger,
	)
}

func seedStudent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, lat, lon float64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO students (full_name, home_address, home_latitude, home_longitude)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, fmt.Sprintf("Test Student %d", time.Now().UnixNano()), "Test Address", lat, lon).Scan(&id)
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return id
}

func seedTrainer(t *testing.T, ctx context.Context, pool *pgxpool.Pool, rating float64, slot string, specialties []string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO trainers (full_name, gender, status)
		VALUES ($1, 'female', 'approved')
		RETURNING id
	`, fmt.Sprintf("Test Trainer %d", time.Now().UnixNano())).Scan(&id)
	if err != nil {
		t.Fatalf("seed trainer: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO trainer_profiles (trainer_id, specialties, preferred_slots, rating_avg, experience_years)
		VALUES ($1, $2, $3, $4, 3)
	`, id, specialties, []string{slot}, rating)
	if err != nil {
		t.Fatalf("seed trainer profile: %v", err)
	}
	return id
}

func seedCourse(t *testing.T, ctx context.Context, pool *pgxpool.Pool, category, subcategory string) int64 {
	t.Helper()
	var sub *string
	if subcategory != "" {
		sub = &subcategory
	}
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO courses (name, category, subcategory)
		VALUES ($1, $2, $3)
		RETURNING id
	`, fmt.Sprintf("Test Course %d", time.Now().UnixNano()), category, sub).Scan(&id)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return id
}

// fillTrainerCapacity seeds committed allocations for extra students until
// the trainer holds count more slots. The seeded rows are removed on test
// cleanup before the shared fixtures.
func fillTrainerCapacity(t *testing.T, ctx context.Context, pool *pgxpool.Pool, trainerID int64, slot string, startDate time.Time, count int) {
	t.Helper()

	students := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		studentID := seedStudent(t, ctx, pool, 12.9716, 77.5946)
		students = append(students, studentID)
		_, err := pool.Exec(ctx, `
			INSERT INTO allocations (student_id, trainer_id, status, time_slot, start_date, recurrence_mode, session_count, session_duration_min)
			VALUES ($1, $2, 'active', $3, $4, 'daily', 10, 40)
		`, studentID, trainerID, slot, startDate)
		if err != nil {
			t.Fatalf("seed capacity allocation: %v", err)
		}
	}

	t.Cleanup(func() {
		for _, studentID := range students {
			if _, err := pool.Exec(ctx, "DELETE FROM allocations WHERE student_id = $1", studentID); err != nil {
				t.Fatalf("cleanup capacity allocations: %v", err)
			}
			if _, err := pool.Exec(ctx, "DELETE FROM students WHERE id = $1", studentID); err != nil {
				t.Fatalf("cleanup capacity students: %v", err)
			}
		}
	})
}

func seedPendingAllocation(t *testing.T, ctx context.Context, pool *pgxpool.Pool, studentID, courseID int64, slot string, startDate time.Time) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO allocations (student_id, course_id, status, time_slot, start_date, recurrence_mode, session_count, session_duration_min)
		VALUES ($1, $2, 'pending', $3, $4, 'daily', 10, 40)
		RETURNING id
	`, studentID, courseID, slot, startDate).Scan(&id)
	if err != nil {
		t.Fatalf("seed pending allocation: %v", err)
	}
	return id
}

func cleanupTrainer(t *testing.T, ctx context.Context, pool *pgxpool.Pool, trainerID int64) {
	t.Helper()
	if _, err := pool.Exec(ctx, "DELETE FROM trainer_availability WHERE trainer_id = $1", trainerID); err != nil {
		t.Fatalf("cleanup availability: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM trainer_profiles WHERE trainer_id = $1", trainerID); err != nil {
		t.Fatalf("cleanup trainer profiles: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM trainers WHERE id = $1", trainerID); err != nil {
		t.Fatalf("cleanup trainers: %v", err)
	}
}

func cleanupScheduling(t *testing.T, ctx context.Context, pool *pgxpool.Pool, studentID, trainerID, courseID int64) {
	t.Helper()

	if _, err := pool.Exec(ctx, "DELETE FROM sessions WHERE student_id = $1", studentID); err != nil {
		t.Fatalf("cleanup sessions: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM allocations WHERE student_id = $1", studentID); err != nil {
		t.Fatalf("cleanup allocations: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM purchases WHERE student_id = $1", studentID); err != nil {
		t.Fatalf("cleanup purchases: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM students WHERE id = $1", studentID); err != nil {
		t.Fatalf("cleanup students: %v", err)
	}
	if trainerID != 0 {
		cleanupTrainer(t, ctx, pool, trainerID)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM courses WHERE id = $1", courseID); err != nil {
		t.Fatalf("cleanup courses: %v", err)
	}
}
