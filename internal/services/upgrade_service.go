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

const (
	UpgradeModeExtended            = "extended"
	UpgradeModeReplacementTrainer  = "replacement_trainer"
	UpgradeModeExtendedWithWarning = "extended_with_warning"
)

type UpgradeInput struct {
	StudentID          int64
	CourseID           int64
	PurchaseID         *int64
	AdditionalSessions *int
	NewTier            *int
	RequestedBy        *int64
}

// UpgradeResult reports which path the coordinator took. NewAllocation is
// set only for the replacement-trainer path; the original allocation and
// its scheduled sessions are never touched in that case.
type UpgradeResult struct {
	Mode          string             `json:"mode"`
	Allocation    *models.Allocation `json:"allocation"`
	NewAllocation *models.Allocation `json:"new_allocation,omitempty"`
	Summary       *GenerationSummary `json:"summary,omitempty"`
	Warning       string             `json:"warning,omitempty"`
}

// UpgradeService handles a student buying more sessions for a course that
// already has a committed allocation: extend in place when the current
// trainer still qualifies, otherwise bind the increment to a replacement
// trainer in a second allocation, and as a last resort extend with the
// original trainer under an explicit availability warning.
type UpgradeService struct {
	db             *pgxpool.Pool
	allocationRepo *repository.AllocationRepository
	sessionRepo    *repository.SessionRepository
	purchaseRepo   *repository.PurchaseRepository
	courseRepo     *repository.CourseRepository
	generator      *ScheduleGenerator
	effects        *EffectRunner
	publisher      EventPublisher
	cfg            EngineConfig
	logger         *zap.Logger
}

func NewUpgradeService(
	db *pgxpool.Pool,
	allocationRepo *repository.AllocationRepository,
	sessionRepo *repository.SessionRepository,
	purchaseRepo *repository.PurchaseRepository,
	courseRepo *repository.CourseRepository,
	generator *ScheduleGenerator,
	effects *EffectRunner,
	publisher EventPublisher,
	cfg EngineConfig,
	logger *zap.Logger,
) *UpgradeService {
	return &UpgradeService{
		db:             db,
		allocationRepo: allocationRepo,
		sessionRepo:    sessionRepo,
		purchaseRepo:   purchaseRepo,
		courseRepo:     courseRepo,
		generator:      generator,
		effects:        effects,
		publisher:      publisher,
		cfg:            cfg,
		logger:         logger,
	}
}

func (s *UpgradeService) Upgrade(ctx context.Context, input UpgradeInput) (*UpgradeResult, error) {
	if input.StudentID <= 0 || input.CourseID <= 0 {
		return nil, ErrInvalidInput
	}

	allocation, err := s.allocationRepo.FindCommittedForStudentCourse(ctx, input.StudentID, input.CourseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoUpgradableAllocation
		}
		return nil, err
	}
	if allocation.TrainerID == nil {
		return nil, ErrNoUpgradableAllocation
	}

	purchase := s.lookupPurchase(ctx, input)
	additional, err := s.resolveAdditionalSessions(ctx, input, purchase, allocation)
	if err != nil {
		return nil, err
	}

	lastNumber, err := s.sessionRepo.LastSessionNumber(ctx, allocation.ID)
	if err != nil {
		return nil, err
	}
	extensionStart, err := s.extensionStartDate(ctx, allocation)
	if err != nil {
		return nil, err
	}

	extendedSchedule := allocation.Schedule
	extendedSchedule.StartDate = extensionStart
	extendedSchedule.SessionCount = additional

	req := SelectionRequest{
		StudentID: input.StudentID,
		CourseID:  allocation.CourseID,
		Schedule:  extendedSchedule,
	}
	if course, err := s.courseRepo.GetByID(ctx, input.CourseID); err == nil {
		if course.Category != nil && *course.Category != "" {
			req.Specialties = append(req.Specialties, *course.Category)
		}
		if course.Subcategory != nil && *course.Subcategory != "" {
			req.Specialties = append(req.Specialties, *course.Subcategory)
		}
	}

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

	currentOK, reasons, err := selector.CheckTrainer(ctx, *allocation.TrainerID, req)
	if err != nil {
		return nil, err
	}

	if currentOK {
		updated, err := txAllocations.ExtendSessions(ctx, allocation.ID, additional, nil)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		summary := s.generateIncrement(ctx, updated, additional, lastNumber, extensionStart)
		return &UpgradeResult{
			Mode:       UpgradeModeExtended,
			Allocation: updated,
			Summary:    summary,
		}, nil
	}

	s.logger.Info("current trainer failed upgrade eligibility, trying replacement",
		zap.Int64("allocation_id", allocation.ID),
		zap.Int64("trainer_id", *allocation.TrainerID),
		zap.Strings("reasons", reasons),
	)

	req.ExcludeTrainerID = allocation.TrainerID
	selection, err := selector.Select(ctx, req)
	if err != nil {
		return nil, err
	}

	if selection.Trainer != nil {
		replacementID := selection.Trainer.TrainerID
		crossLink := fmt.Sprintf("upgrade of allocation %d", allocation.ID)
		newAllocation, err := txAllocations.Create(ctx, repository.CreateAllocationInput{
			StudentID:      input.StudentID,
			TrainerID:      &replacementID,
			CourseID:       allocation.CourseID,
			Status:         models.AllocationStatusApproved,
			Schedule:       extendedSchedule,
			UsedFallback:   selection.UsedFallback,
			UpgradedFromID: &allocation.ID,
			Notes:          &crossLink,
			RequestedBy:    input.RequestedBy,
		})
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		summary := s.generateIncrement(ctx, newAllocation, additional, 0, extensionStart)
		return &UpgradeResult{
			Mode:          UpgradeModeReplacementTrainer,
			Allocation:    allocation,
			NewAllocation: newAllocation,
			Summary:       summary,
		}, nil
	}

	// No replacement either. The purchase is never dropped: extend with
	// the original trainer and flag the conflicts for manual follow-up.
	warning := "trainer_availability_warning: " + strings.Join(reasons, ", ")
	updated, err := txAllocations.ExtendSessions(ctx, allocation.ID, additional, &warning)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Warn("upgrade proceeding with conflicting trainer",
		zap.Int64("allocation_id", allocation.ID),
		zap.Int64("trainer_id", *allocation.TrainerID),
		zap.String("warning", warning),
	)

	summary := s.generateIncrement(ctx, updated, additional, lastNumber, extensionStart)
	return &UpgradeResult{
		Mode:       UpgradeModeExtendedWithWarning,
		Allocation: updated,
		Summary:    summary,
		Warning:    warning,
	}, nil
}

func (s *UpgradeService) lookupPurchase(ctx context.Context, input UpgradeInput) *models.Purchase {
	var purchase *models.Purchase
	var err error
	if input.PurchaseID != nil {
		purchase, err = s.purchaseRepo.GetByID(ctx, *input.PurchaseID)
	} else {
		purchase, err = s.purchaseRepo.LatestForStudentCourse(ctx, input.StudentID, input.CourseID)
	}
	if err != nil {
		s.logger.Warn("purchase lookup failed during upgrade",
			zap.Int64("student_id", input.StudentID),
			zap.Int64("course_id", input.CourseID),
			zap.Error(err),
		)
		return nil
	}
	return purchase
}

// resolveAdditionalSessions walks the documented precedence: explicit
// value, purchase metadata, new tier minus the current block, and finally
// the size of the existing block.
func (s *UpgradeService) resolveAdditionalSessions(
	ctx context.Context,
	input UpgradeInput,
	purchase *models.Purchase,
	allocation *models.Allocation,
) (int, error) {
	if input.AdditionalSessions != nil && *input.AdditionalSessions > 0 {
		return *input.AdditionalSessions, nil
	}
	if purchase != nil && purchase.AdditionalSessions != nil && *purchase.AdditionalSessions > 0 {
		return *purchase.AdditionalSessions, nil
	}

	newTier := 0
	if input.NewTier != nil {
		newTier = *input.NewTier
	} else if purchase != nil && purchase.SessionCount != nil {
		newTier = *purchase.SessionCount
	}
	if newTier > allocation.Schedule.SessionCount {
		return newTier - allocation.Schedule.SessionCount, nil
	}

	existing, err := s.sessionRepo.CountByAllocation(ctx, allocation.ID)
	if err != nil {
		return 0, err
	}
	if newTier > existing {
		return newTier - existing, nil
	}
	if allocation.Schedule.SessionCount > 0 {
		return allocation.Schedule.SessionCount, nil
	}
	return 0, fmt.Errorf("%w: cannot determine additional session count", ErrInvalidInput)
}

// extensionStartDate is the day after the last scheduled session, or
// tomorrow when the allocation has no sessions yet.
func (s *UpgradeService) extensionStartDate(
	ctx context.Context,
	allocation *models.Allocation,
) (time.Time, error) {
	sessions, err := s.sessionRepo.ListByAllocation(ctx, allocation.ID)
	if err != nil {
		return time.Time{}, err
	}
	if len(sessions) == 0 {
		return truncateToDay(time.Now().AddDate(0, 0, 1)), nil
	}
	last := sessions[len(sessions)-1].ScheduledDate
	return truncateToDay(last).AddDate(0, 0, 1), nil
}

// generateIncrement emits only the new block of sessions, numbered after
// the last existing one. Generation failures are logged, not fatal: the
// upgrade itself already committed and can be regenerated.
func (s *UpgradeService) generateIncrement(
	ctx context.Context,
	allocation *models.Allocation,
	count int,
	lastNumber int,
	startDate time.Time,
) *GenerationSummary {
	var summary *GenerationSummary
	s.effects.Run(ctx, allocation.ID, Effect{
		Name: "generate_upgrade_sessions",
		Run: func(ctx context.Context) error {
			var err error
			summary, err = s.generator.Generate(ctx, allocation, GenerateOptions{
				Count:         count,
				StartNumber:   lastNumber + 1,
				TotalSessions: lastNumber + count,
				StartDate:     startDate,
			})
			if err != nil {
				return err
			}

			event := newEvent(EventSessionsGenerated)
			event.AllocationID = allocation.ID
			event.StudentID = allocation.StudentID
			event.TrainerID = allocation.TrainerID
			event.CourseID = allocation.CourseID
			event.SessionIDs = summary.SessionIDs
			if !summary.FirstDate.IsZero() {
				first, lastDate := summary.FirstDate, summary.LastDate
				event.FirstDate = &first
				event.LastDate = &lastDate
			}
			return s.publisher.Publish(ctx, event)
		},
	})
	return summary
}
