package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
)

type sessionStore interface {
	Create(ctx context.Context, input repository.CreateSessionInput) (*models.Session, error)
	Exists(ctx context.Context, allocationID, studentID, trainerID int64, scheduledDate time.Time, scheduledTime string) (bool, error)
	LastSessionNumber(ctx context.Context, allocationID int64) (int, error)
}

type generatorStudentReader interface {
	GetByID(ctx context.Context, id int64) (*models.Student, error)
}

// GenerateOptions override parts of the allocation's schedule for a
// generation run. Zero values fall back to the allocation and engine
// defaults; the upgrade coordinator uses the overrides to emit only the
// incremental block.
type GenerateOptions struct {
	Count         int
	StartNumber   int
	TotalSessions int
	StartDate     time.Time
}

// GenerationSummary describes one generation batch for logging and the
// outbound sessions-generated event.
type GenerationSummary struct {
	AllocationID int64     `json:"allocation_id"`
	SessionIDs   []int64   `json:"session_ids"`
	Requested    int       `json:"requested"`
	Created      int       `json:"created"`
	Duplicates   int       `json:"duplicates"`
	FirstDate    time.Time `json:"first_date"`
	LastDate     time.Time `json:"last_date"`
	TimeSlot     string    `json:"time_slot"`
}

// ScheduleGenerator expands an approved allocation into dated session
// rows. Generation is idempotent: duplicates detected against the unique
// session key count toward the target instead of erroring, so a retry
// after partial failure converges on the same schedule.
type ScheduleGenerator struct {
	sessions sessionStore
	students generatorStudentReader
	cfg      EngineConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewScheduleGenerator(
	sessions sessionStore,
	students generatorStudentReader,
	cfg EngineConfig,
	logger *zap.Logger,
) *ScheduleGenerator {
	return &ScheduleGenerator{
		sessions: sessions,
		students: students,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (g *ScheduleGenerator) Generate(
	ctx context.Context,
	allocation *models.Allocation,
	opts GenerateOptions,
) (*GenerationSummary, error) {
	if allocation == nil || allocation.TrainerID == nil {
		return nil, fmt.Errorf("%w: allocation has no trainer", ErrInvalidInput)
	}
	if !allocation.IsCommitted() {
		return nil, ErrAllocationNotCommitted
	}

	student, err := g.students.GetByID(ctx, allocation.StudentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	home, ok := student.HomeLocation()
	if !ok {
		return nil, fmt.Errorf(
			"%w: student %d has no valid coordinates, update the home address and retry",
			ErrMissingHomeLocation, student.ID,
		)
	}

	count := opts.Count
	if count <= 0 {
		count = allocation.Schedule.SessionCount
	}
	if count <= 0 {
		count = g.cfg.DefaultSessionCount
	}

	duration := allocation.Schedule.DurationMinutes
	if duration <= 0 {
		duration = g.cfg.durationForMode(allocation.Schedule.RecurrenceMode)
	}

	startNumber := opts.StartNumber
	if startNumber <= 0 {
		last, err := g.sessions.LastSessionNumber(ctx, allocation.ID)
		if err != nil {
			return nil, err
		}
		startNumber = last + 1
	}
	totalSessions := opts.TotalSessions
	if totalSessions <= 0 {
		totalSessions = startNumber + count - 1
	}

	slot := NormalizeTimeSlot(allocation.Schedule.TimeSlot)
	today := truncateToDay(g.now())
	date := g.resolveStartDate(allocation, opts, today)
	sundayOnly := allocation.Schedule.RecurrenceMode == models.RecurrenceSundayOnly
	if sundayOnly {
		// Align to the first Sunday so alignment does not eat into the
		// attempt budget.
		for date.Weekday() != time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
	}

	summary := &GenerationSummary{
		AllocationID: allocation.ID,
		Requested:    count,
		TimeSlot:     slot,
		SessionIDs:   make([]int64, 0, count),
	}

	budget := count * g.cfg.AttemptMultiplier
	for attempts := 0; summary.Created+summary.Duplicates < count && attempts < budget; attempts++ {
		scheduled := date
		date = g.nextCandidate(date, sundayOnly)

		if skip, why := g.shouldSkip(scheduled, today, sundayOnly); skip {
			g.logger.Debug("skipping candidate date",
				zap.Int64("allocation_id", allocation.ID),
				zap.Time("date", scheduled),
				zap.String("reason", why),
			)
			continue
		}

		exists, err := g.sessions.Exists(
			ctx, allocation.ID, allocation.StudentID, *allocation.TrainerID, scheduled, slot,
		)
		if err != nil {
			return nil, err
		}
		if exists {
			summary.Duplicates++
			g.recordDate(summary, scheduled)
			continue
		}

		session, err := g.sessions.Create(ctx, repository.CreateSessionInput{
			AllocationID:    allocation.ID,
			StudentID:       allocation.StudentID,
			TrainerID:       *allocation.TrainerID,
			CourseID:        allocation.CourseID,
			ScheduledDate:   scheduled,
			ScheduledTime:   slot,
			DurationMinutes: duration,
			HomeLatitude:    home.Latitude,
			HomeLongitude:   home.Longitude,
			OTP:             newSessionOTP(),
			SessionNumber:   startNumber + summary.Created + summary.Duplicates,
			TotalSessions:   totalSessions,
		})
		if err != nil {
			return nil, fmt.Errorf("create session %d for allocation %d: %w",
				startNumber+summary.Created, allocation.ID, err)
		}
		summary.SessionIDs = append(summary.SessionIDs, session.ID)
		summary.Created++
		g.recordDate(summary, scheduled)
	}

	if summary.Created+summary.Duplicates < count {
		g.logger.Warn("session generation exhausted attempt budget",
			zap.Int64("allocation_id", allocation.ID),
			zap.Int("requested", count),
			zap.Int("created", summary.Created),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("budget", budget),
		)
	} else {
		g.logger.Info("sessions generated",
			zap.Int64("allocation_id", allocation.ID),
			zap.Int("created", summary.Created),
			zap.Int("duplicates", summary.Duplicates),
			zap.Time("first_date", summary.FirstDate),
			zap.Time("last_date", summary.LastDate),
		)
	}
	return summary, nil
}

// resolveStartDate walks the documented precedence: explicit override,
// allocation schedule, tomorrow.
func (g *ScheduleGenerator) resolveStartDate(
	allocation *models.Allocation,
	opts GenerateOptions,
	today time.Time,
) time.Time {
	if !opts.StartDate.IsZero() {
		return truncateToDay(opts.StartDate)
	}
	if !allocation.Schedule.StartDate.IsZero() {
		return truncateToDay(allocation.Schedule.StartDate)
	}
	return today.AddDate(0, 0, 1)
}

func (g *ScheduleGenerator) nextCandidate(date time.Time, sundayOnly bool) time.Time {
	if sundayOnly && date.Weekday() == time.Sunday {
		return date.AddDate(0, 0, 7)
	}
	return date.AddDate(0, 0, 1)
}

func (g *ScheduleGenerator) shouldSkip(date, today time.Time, sundayOnly bool) (bool, string) {
	if date.Before(today) {
		return true, "date in the past"
	}
	if sundayOnly {
		if date.Weekday() != time.Sunday {
			return true, "not a sunday"
		}
		return false, ""
	}
	// Daily mode only: Sundays inside the holiday window are skipped.
	// Sunday-only courses are exempt.
	if date.Weekday() == time.Sunday && !date.After(g.cfg.SundayHolidayUntil) {
		return true, "sunday holiday window"
	}
	return false, ""
}

func (g *ScheduleGenerator) recordDate(summary *GenerationSummary, date time.Time) {
	if summary.FirstDate.IsZero() || date.Before(summary.FirstDate) {
		summary.FirstDate = date
	}
	if date.After(summary.LastDate) {
		summary.LastDate = date
	}
}

// newSessionOTP derives a six-digit visit code from a fresh UUID.
func newSessionOTP() string {
	u := uuid.New()
	n := binary.BigEndian.Uint32(u[0:4]) % 1000000
	return fmt.Sprintf("%06d", n)
}
