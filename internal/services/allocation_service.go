package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
)

// AllocationService owns the allocation state machine:
//
//	pending -> approved -> active
//	pending -> rejected
//	approved/active -> cancelled | completed
//
// Approvals run the trainer selector inside the same transaction as the
// status flip; session generation and collaborator calls run as
// post-commit effects that never roll the approval back.
type AllocationService struct {
	db             *pgxpool.Pool
	allocationRepo *repository.AllocationRepository
	sessionRepo    *repository.SessionRepository
	studentRepo    *repository.StudentRepository
	courseRepo     *repository.CourseRepository
	purchaseRepo   *repository.PurchaseRepository
	generator      *ScheduleGenerator
	effects        *EffectRunner
	publisher      EventPublisher
	notifier       NotificationDispatcher
	payroll        PayrollLedger
	cfg            EngineConfig
	logger         *zap.Logger
}

func NewAllocationService(
	db *pgxpool.Pool,
	allocationRepo *repository.AllocationRepository,
	sessionRepo *repository.SessionRepository,
	studentRepo *repository.StudentRepository,
	courseRepo *repository.CourseRepository,
	purchaseRepo *repository.PurchaseRepository,
	generator *ScheduleGenerator,
	effects *EffectRunner,
	publisher EventPublisher,
	notifier NotificationDispatcher,
	payroll PayrollLedger,
	cfg EngineConfig,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		db:             db,
		allocationRepo: allocationRepo,
		sessionRepo:    sessionRepo,
		studentRepo:    studentRepo,
		courseRepo:     courseRepo,
		purchaseRepo:   purchaseRepo,
		generator:      generator,
		effects:        effects,
		publisher:      publisher,
		notifier:       notifier,
		payroll:        payroll,
		cfg:            cfg,
		logger:         logger,
	}
}

type CreateAllocationInput struct {
	StudentID        int64
	CourseID         *int64
	TrainerID        *int64
	PurchaseID       *int64
	TimeSlot         string
	StartDate        *time.Time
	RecurrenceMode   string
	SessionCount     int
	GenderPreference *string
	Notes            *string
	RequestedBy      *int64
}

// CreateAllocation registers a pending allocation for the purchase or
// admin request. When an open allocation already exists for the
// (student, course) pair the existing one is returned with created=false
// instead of inserting a duplicate.
func (s *AllocationService) CreateAllocation(
	ctx context.Context,
	input CreateAllocationInput,
) (*models.Allocation, bool, error) {
	if input.StudentID <= 0 {
		return nil, false, ErrInvalidInput
	}

	if _, err := s.studentRepo.GetByID(ctx, input.StudentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrStudentNotFound
		}
		return nil, false, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	txAllocations := repository.NewAllocationRepository(tx)

	if input.CourseID != nil {
		// Serialize concurrent creates for the pair so the open-allocation
		// check and the insert are atomic.
		key := fmt.Sprintf("allocation:%d:%d", input.StudentID, *input.CourseID)
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
			return nil, false, err
		}

		existing, err := txAllocations.FindOpenForStudentCourse(ctx, input.StudentID, *input.CourseID)
		if err == nil {
			s.logger.Info("allocation create merged into existing",
				zap.Int64("allocation_id", existing.ID),
				zap.Int64("student_id", input.StudentID),
				zap.Int64("course_id", *input.CourseID),
				zap.String("status", existing.Status),
			)
			return existing, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}
	}

	schedule, err := s.resolveSchedule(ctx, input)
	if err != nil {
		return nil, false, err
	}

	allocation, err := txAllocations.Create(ctx, repository.CreateAllocationInput{
		StudentID:   input.StudentID,
		TrainerID:   input.TrainerID,
		CourseID:    input.CourseID,
		Status:      models.AllocationStatusPending,
		Schedule:    schedule,
		Notes:       input.Notes,
		RequestedBy: input.RequestedBy,
	})
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return allocation, true, nil
}

// resolveSchedule builds the typed schedule from the request, falling back
// to the purchase record and finally to engine defaults. A purchase
// lookup failure degrades to defaults instead of failing the request.
func (s *AllocationService) resolveSchedule(
	ctx context.Context,
	input CreateAllocationInput,
) (models.ScheduleConfig, error) {
	schedule := models.ScheduleConfig{
		TimeSlot:       NormalizeTimeSlot(input.TimeSlot),
		RecurrenceMode: strings.TrimSpace(input.RecurrenceMode),
		SessionCount:   input.SessionCount,
	}
	if input.StartDate != nil {
		schedule.StartDate = truncateToDay(*input.StartDate)
	}

	var purchase *models.Purchase
	if input.PurchaseID != nil {
		var err error
		purchase, err = s.purchaseRepo.GetByID(ctx, *input.PurchaseID)
		if err != nil {
			s.logger.Warn("purchase lookup failed, using schedule defaults",
				zap.Int64("purchase_id", *input.PurchaseID),
				zap.Int64("student_id", input.StudentID),
				zap.Error(err),
			)
			purchase = nil
		}
	}

	if purchase != nil {
		if schedule.TimeSlot == "" && purchase.PreferredSlot != nil {
			schedule.TimeSlot = NormalizeTimeSlot(*purchase.PreferredSlot)
		}
		if schedule.StartDate.IsZero() && purchase.PreferredStartDate != nil {
			schedule.StartDate = truncateToDay(*purchase.PreferredStartDate)
		}
		if schedule.SessionCount <= 0 && purchase.SessionCount != nil {
			schedule.SessionCount = *purchase.SessionCount
		}
	}

	if schedule.TimeSlot == "" {
		return models.ScheduleConfig{}, fmt.Errorf("%w: time slot is required", ErrInvalidInput)
	}
	if schedule.RecurrenceMode == "" {
		schedule.RecurrenceMode = models.RecurrenceDaily
	}
	if schedule.RecurrenceMode != models.RecurrenceDaily &&
		schedule.RecurrenceMode != models.RecurrenceSundayOnly {
		return models.ScheduleConfig{}, fmt.Errorf("%w: unknown recurrence mode %q", ErrInvalidInput, schedule.RecurrenceMode)
	}
	if schedule.SessionCount <= 0 {
		schedule.SessionCount = s.cfg.DefaultSessionCount
	}
	if schedule.StartDate.IsZero() {
		schedule.StartDate = truncateToDay(time.Now().AddDate(0, 0, 1))
	}
	if schedule.DurationMinutes <= 0 {
		schedule.DurationMinutes = s.cfg.durationForMode(schedule.RecurrenceMode)
	}
	return schedule, nil
}

// Approve resolves a trainer (running the selector when none is bound),
// flips pending to approved inside one transaction, then fires the
// post-commit effects: session generation, payroll start, events and
// notifications. A tier-3 selector outcome leaves the allocation pending
// with a reason code and returns ErrManualReviewRequired.
func (s *AllocationService) Approve(
	ctx context.Context,
	allocationID int64,
	approvedBy *int64,
	genderPreference *string,
) (*models.Allocation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txAllocations := repository.NewAllocationRepository(tx)
	selector := NewTrainerSelector(
		tx,
		repository.NewTrainerRepository(tx),
		repository.NewStudentRepository(tx),
		s.cfg,
		s.logger,
	)

	allocation, err := txAllocations.GetByIDForUpdate(ctx, allocationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}
	if allocation.Status != models.AllocationStatusPending {
		return nil, ErrInvalidStateTransition
	}

	req, err := s.selectionRequest(ctx, allocation, genderPreference)
	if err != nil {
		return nil, err
	}

	usedFallback := false
	var trainerID int64
	if allocation.TrainerID != nil {
		ok, reasons, err := selector.CheckTrainer(ctx, *allocation.TrainerID, req)
		if err != nil {
			return nil, err
		}
		if !ok {
			if len(reasons) == 1 && reasons[0] == reasonCapacityExhausted {
				return nil, ErrCapacityExhausted
			}
			return nil, fmt.Errorf("%w: %s", ErrTrainerNotEligible, strings.Join(reasons, ", "))
		}
		trainerID = *allocation.TrainerID
	} else {
		result, err := selector.Select(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Trainer == nil {
			allocation, err = txAllocations.MarkPendingReason(ctx, allocationID, result.PendingReason)
			if err != nil {
				return nil, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return allocation, ErrManualReviewRequired
		}
		trainerID = result.Trainer.TrainerID
		usedFallback = result.UsedFallback
	}

	allocation, err = txAllocations.Approve(ctx, allocationID, trainerID, approvedBy, usedFallback)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		if isDuplicateCommit(err) {
			// A concurrent approval committed an allocation for the same
			// (student, course) pair first.
			return nil, ErrAllocationExists
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.runApprovalEffects(ctx, allocation)
	return allocation, nil
}

// runApprovalEffects performs the side effects of an approval. Failures
// are logged with full context and never undo the approval; sessions can
// be regenerated manually later.
func (s *AllocationService) runApprovalEffects(ctx context.Context, allocation *models.Allocation) {
	alloc := *allocation
	s.effects.Run(ctx, alloc.ID,
		Effect{
			Name: "generate_sessions",
			Run: func(ctx context.Context) error {
				summary, err := s.generator.Generate(ctx, &alloc, GenerateOptions{})
				if err != nil {
					return err
				}
				return s.publishSessionsGenerated(ctx, &alloc, summary)
			},
		},
		Effect{
			Name: "publish_trainer_allocated",
			Run: func(ctx context.Context) error {
				event := newEvent(EventTrainerAllocated)
				event.AllocationID = alloc.ID
				event.StudentID = alloc.StudentID
				event.TrainerID = alloc.TrainerID
				event.CourseID = alloc.CourseID
				return s.publisher.Publish(ctx, event)
			},
		},
		Effect{
			Name: "payroll_start_period",
			Run: func(ctx context.Context) error {
				return s.payroll.StartPeriod(ctx, alloc.ID, *alloc.TrainerID)
			},
		},
		Effect{
			Name: "notify_parties",
			Run: func(ctx context.Context) error {
				if err := s.notifier.Dispatch(ctx, Notification{
					Kind:         "allocation_approved",
					Recipient:    "student",
					RecipientID:  alloc.StudentID,
					AllocationID: alloc.ID,
					Message:      "A trainer has been assigned to your course",
				}); err != nil {
					return err
				}
				return s.notifier.Dispatch(ctx, Notification{
					Kind:         "allocation_approved",
					Recipient:    "trainer",
					RecipientID:  *alloc.TrainerID,
					AllocationID: alloc.ID,
					Message:      "A new student has been assigned to you",
				})
			},
		},
	)
}

func (s *AllocationService) publishSessionsGenerated(
	ctx context.Context,
	allocation *models.Allocation,
	summary *GenerationSummary,
) error {
	event := newEvent(EventSessionsGenerated)
	event.AllocationID = allocation.ID
	event.StudentID = allocation.StudentID
	event.TrainerID = allocation.TrainerID
	event.CourseID = allocation.CourseID
	event.SessionIDs = summary.SessionIDs
	if !summary.FirstDate.IsZero() {
		first, last := summary.FirstDate, summary.LastDate
		event.FirstDate = &first
		event.LastDate = &last
	}
	return s.publisher.Publish(ctx, event)
}

func (s *AllocationService) selectionRequest(
	ctx context.Context,
	allocation *models.Allocation,
	genderPreference *string,
) (SelectionRequest, error) {
	req := SelectionRequest{
		StudentID:        allocation.StudentID,
		CourseID:         allocation.CourseID,
		Schedule:         allocation.Schedule,
		GenderPreference: genderPreference,
	}
	if allocation.CourseID != nil {
		course, err := s.courseRepo.GetByID(ctx, *allocation.CourseID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return SelectionRequest{}, err
		}
		if course != nil {
			if course.Category != nil && *course.Category != "" {
				req.Specialties = append(req.Specialties, *course.Category)
			}
			if course.Subcategory != nil && *course.Subcategory != "" {
				req.Specialties = append(req.Specialties, *course.Subcategory)
			}
		}
	}
	return req, nil
}

// Reject moves a pending allocation to rejected and notifies the student.
func (s *AllocationService) Reject(
	ctx context.Context,
	allocationID int64,
	rejectedBy *int64,
	reason string,
) (*models.Allocation, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}
	allocation, err := s.allocationRepo.Reject(ctx, allocationID, rejectedBy, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionError(ctx, allocationID)
		}
		return nil, err
	}

	s.effects.Run(ctx, allocation.ID, Effect{
		Name: "notify_rejection",
		Run: func(ctx context.Context) error {
			return s.notifier.Dispatch(ctx, Notification{
				Kind:         "allocation_rejected",
				Recipient:    "student",
				RecipientID:  allocation.StudentID,
				AllocationID: allocation.ID,
				Message:      "Your trainer request was rejected: " + reason,
			})
		},
	})
	return allocation, nil
}

// Activate marks an approved allocation as actively teaching.
func (s *AllocationService) Activate(ctx context.Context, allocationID int64) (*models.Allocation, error) {
	allocation, err := s.allocationRepo.UpdateStatusIfCurrent(
		ctx, allocationID, models.AllocationStatusApproved, models.AllocationStatusActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionError(ctx, allocationID)
		}
		return nil, err
	}
	return allocation, nil
}

// Cancel ends the payroll period, then flips approved/active to
// cancelled.
func (s *AllocationService) Cancel(ctx context.Context, allocationID int64) (*models.Allocation, error) {
	return s.close(ctx, allocationID, models.AllocationStatusCancelled)
}

// Complete ends the payroll period, then flips approved/active to
// completed.
func (s *AllocationService) Complete(ctx context.Context, allocationID int64) (*models.Allocation, error) {
	return s.close(ctx, allocationID, models.AllocationStatusCompleted)
}

func (s *AllocationService) close(
	ctx context.Context,
	allocationID int64,
	nextStatus string,
) (*models.Allocation, error) {
	allocation, err := s.allocationRepo.GetByID(ctx, allocationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}
	if !allocation.IsCommitted() {
		return nil, ErrInvalidStateTransition
	}

	if allocation.TrainerID != nil {
		if err := s.payroll.EndPeriod(ctx, allocation.ID, *allocation.TrainerID); err != nil {
			s.logger.Error("payroll end period failed",
				zap.Int64("allocation_id", allocation.ID),
				zap.Int64("trainer_id", *allocation.TrainerID),
				zap.Error(err),
			)
		}
	}

	updated, err := s.allocationRepo.UpdateStatusIfCurrent(ctx, allocationID, allocation.Status, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

// RegenerateSessions re-runs the generator for an approved/active
// allocation; duplicate detection makes this safe to call repeatedly.
func (s *AllocationService) RegenerateSessions(
	ctx context.Context,
	allocationID int64,
) (*GenerationSummary, error) {
	allocation, err := s.allocationRepo.GetByID(ctx, allocationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}
	summary, err := s.generator.Generate(ctx, allocation, GenerateOptions{StartNumber: 1})
	if err != nil {
		return nil, err
	}
	s.effects.Run(ctx, allocation.ID, Effect{
		Name: "publish_sessions_generated",
		Run: func(ctx context.Context) error {
			return s.publishSessionsGenerated(ctx, allocation, summary)
		},
	})
	return summary, nil
}

func (s *AllocationService) Get(ctx context.Context, allocationID int64) (*models.Allocation, error) {
	allocation, err := s.allocationRepo.GetByID(ctx, allocationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}
	return allocation, nil
}

func (s *AllocationService) List(
	ctx context.Context,
	filter repository.AllocationListFilter,
) ([]models.Allocation, error) {
	return s.allocationRepo.List(ctx, filter)
}

type UpdateAllocationInput struct {
	Notes     *string
	TimeSlot  *string
	StartDate *time.Time
}

// Update edits notes at any time; schedule fields only while pending,
// because a committed schedule is what the eligibility checks validated.
func (s *AllocationService) Update(
	ctx context.Context,
	allocationID int64,
	input UpdateAllocationInput,
) (*models.Allocation, error) {
	allocation, err := s.allocationRepo.GetByID(ctx, allocationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}

	if (input.TimeSlot != nil || input.StartDate != nil) &&
		allocation.Status != models.AllocationStatusPending {
		return nil, fmt.Errorf("%w: schedule can only change while pending", ErrInvalidStateTransition)
	}

	var slot *string
	if input.TimeSlot != nil {
		normalized := NormalizeTimeSlot(*input.TimeSlot)
		if normalized == "" {
			return nil, fmt.Errorf("%w: time slot must not be empty", ErrInvalidInput)
		}
		slot = &normalized
	}
	return s.allocationRepo.Update(ctx, allocationID, repository.UpdateAllocationInput{
		Notes:     input.Notes,
		TimeSlot:  slot,
		StartDate: input.StartDate,
	})
}

// transitionError distinguishes "not found" from "stale transition" after
// a compare-and-swap update matched no rows.
func (s *AllocationService) transitionError(ctx context.Context, allocationID int64) error {
	if _, err := s.allocationRepo.GetByID(ctx, allocationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAllocationNotFound
		}
		return err
	}
	return ErrInvalidStateTransition
}
