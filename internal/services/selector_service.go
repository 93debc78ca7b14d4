package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
	"github.com/pavankrishan/tutorlink-backend/pkg/geo"
)

type trainerDirectory interface {
	ListCandidates(ctx context.Context, filter repository.CandidateFilter) ([]models.TrainerCandidate, error)
	GetCandidateByID(ctx context.Context, trainerID int64) (*models.TrainerCandidate, error)
	CurrentLoad(ctx context.Context, trainerID int64) (int, error)
	HasSlotConflict(ctx context.Context, trainerID int64, timeSlot string, startDate, endDate time.Time, excludeStudentID int64) (bool, error)
	AdjacentSlotStudents(ctx context.Context, trainerID int64, timeSlots []string, startDate, endDate time.Time) ([]models.StudentPoint, error)
	IsSlotOpen(ctx context.Context, trainerID int64, timeSlot string) (bool, error)
}

type selectorStudentReader interface {
	GetByID(ctx context.Context, id int64) (*models.Student, error)
}

// SelectionRequest describes one assignment attempt. Specialties are the
// raw course category/subcategory values; the selector expands aliases
// itself.
type SelectionRequest struct {
	StudentID        int64
	CourseID         *int64
	Schedule         models.ScheduleConfig
	GenderPreference *string
	Specialties      []string
	ExcludeTrainerID *int64
}

// SelectionResult carries either a trainer or a manual-review outcome.
// Reasons accumulates the per-candidate rejection reasons of the last
// tier, for audit and upgrade warnings.
type SelectionResult struct {
	Trainer       *models.TrainerCandidate
	Strategy      string
	UsedFallback  bool
	PendingReason string
	Reasons       []string
}

// TrainerSelector runs the ranked candidate query, re-validates each
// candidate against live capacity, schedule conflicts and the
// sequential-slot travel rule, and walks the fallback ladder when the
// strict match produces nothing.
type TrainerSelector struct {
	db       repository.DBTX
	trainers trainerDirectory
	students selectorStudentReader
	cfg      EngineConfig
	logger   *zap.Logger
}

func NewTrainerSelector(
	db repository.DBTX,
	trainers trainerDirectory,
	students selectorStudentReader,
	cfg EngineConfig,
	logger *zap.Logger,
) *TrainerSelector {
	return &TrainerSelector{
		db:       db,
		trainers: trainers,
		students: students,
		cfg:      cfg,
		logger:   logger,
	}
}

// matchStrategy is one rung of the fallback ladder. Strategies are tried
// in order until one yields an eligible trainer.
type matchStrategy struct {
	name         string
	usedFallback bool
	list         func(ctx context.Context, req SelectionRequest) ([]models.TrainerCandidate, error)
}

func (s *TrainerSelector) strategies() []matchStrategy {
	return []matchStrategy{
		{
			name: "strict",
			list: func(ctx context.Context, req SelectionRequest) ([]models.TrainerCandidate, error) {
				return s.trainers.ListCandidates(ctx, repository.CandidateFilter{
					TimeSlot:         NormalizeTimeSlot(req.Schedule.TimeSlot),
					Gender:           req.GenderPreference,
					Specialties:      expandSpecialties(req.Specialties),
					ExactSpecialties: exactCategoryAliases(req.Specialties),
					ExcludeTrainerID: req.ExcludeTrainerID,
					Limit:            s.cfg.CandidateLimit,
				})
			},
		},
		{
			name:         "any_specialty",
			usedFallback: true,
			list: func(ctx context.Context, req SelectionRequest) ([]models.TrainerCandidate, error) {
				return s.trainers.ListCandidates(ctx, repository.CandidateFilter{
					TimeSlot:         NormalizeTimeSlot(req.Schedule.TimeSlot),
					Gender:           req.GenderPreference,
					ExcludeTrainerID: req.ExcludeTrainerID,
					Limit:            s.cfg.CandidateLimit,
				})
			},
		},
		{
			name:         "highest_rated_under_cap",
			usedFallback: true,
			list: func(ctx context.Context, req SelectionRequest) ([]models.TrainerCandidate, error) {
				candidates, err := s.trainers.ListCandidates(ctx, repository.CandidateFilter{
					TimeSlot:         NormalizeTimeSlot(req.Schedule.TimeSlot),
					ExcludeTrainerID: req.ExcludeTrainerID,
					Limit:            s.cfg.CandidateLimit,
				})
				if err != nil {
					return nil, err
				}
				// Pure rating order, ignoring the utilization-floor
				// and load-balancing preferences of the main ranking.
				sort.SliceStable(candidates, func(i, j int) bool {
					return ratingValue(candidates[i].RatingAvg) > ratingValue(candidates[j].RatingAvg)
				})
				return candidates, nil
			},
		},
	}
}

// Select walks the ladder and returns one trainer or a manual-review
// outcome. It never returns an error for "no trainer found"; that is a
// valid terminal result.
func (s *TrainerSelector) Select(ctx context.Context, req SelectionRequest) (*SelectionResult, error) {
	if req.StudentID <= 0 || strings.TrimSpace(req.Schedule.TimeSlot) == "" {
		return nil, ErrInvalidInput
	}

	sawCandidates := false
	var lastReasons []string

	for _, strategy := range s.strategies() {
		candidates, err := strategy.list(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}
		sawCandidates = true

		lastReasons = lastReasons[:0]
		for _, candidate := range candidates {
			ok, reason, err := s.checkEligibility(ctx, &candidate, req)
			if err != nil {
				return nil, err
			}
			if !ok {
				lastReasons = append(lastReasons, reason)
				continue
			}
			s.logger.Info("trainer selected",
				zap.Int64("trainer_id", candidate.TrainerID),
				zap.Int64("student_id", req.StudentID),
				zap.String("strategy", strategy.name),
				zap.String("time_slot", req.Schedule.TimeSlot),
			)
			return &SelectionResult{
				Trainer:      &candidate,
				Strategy:     strategy.name,
				UsedFallback: strategy.usedFallback,
			}, nil
		}
	}

	reason := ReasonNoAvailableTrainers
	if sawCandidates {
		reason = ReasonNoEligibleTrainers
	}
	s.logger.Warn("no trainer matched, manual review required",
		zap.Int64("student_id", req.StudentID),
		zap.String("time_slot", req.Schedule.TimeSlot),
		zap.String("reason", reason),
		zap.Strings("rejections", lastReasons),
	)
	return &SelectionResult{
		PendingReason: reason,
		Reasons:       append([]string(nil), lastReasons...),
	}, nil
}

// CheckTrainer re-runs the eligibility gate against one specific trainer,
// used when approving an explicitly assigned trainer and by the upgrade
// coordinator. Returns the failure reasons when the trainer does not
// qualify.
func (s *TrainerSelector) CheckTrainer(
	ctx context.Context,
	trainerID int64,
	req SelectionRequest,
) (bool, []string, error) {
	candidate, err := s.trainers.GetCandidateByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil, ErrTrainerNotFound
		}
		return false, nil, err
	}

	ok, reason, err := s.checkEligibility(ctx, candidate, req)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, []string{reason}, nil
	}
	return true, nil, nil
}

// CheckSlotAvailability answers the availability endpoint: whether the
// trainer could take a new student at the slot over the date range. It
// includes the union-of-representations slot check the candidate query
// normally performs.
func (s *TrainerSelector) CheckSlotAvailability(
	ctx context.Context,
	trainerID int64,
	req SelectionRequest,
) (bool, []string, error) {
	open, err := s.trainers.IsSlotOpen(ctx, trainerID, NormalizeTimeSlot(req.Schedule.TimeSlot))
	if err != nil {
		return false, nil, err
	}
	if !open {
		return false, []string{reasonSlotClosed}, nil
	}
	return s.CheckTrainer(ctx, trainerID, req)
}

// checkEligibility is the authoritative gate; the candidate query is only
// a coarse pre-filter. Runs capacity, direct-conflict and travel checks
// in that order, taking a per-trainer advisory lock first so two
// concurrent assignments cannot both pass.
func (s *TrainerSelector) checkEligibility(
	ctx context.Context,
	candidate *models.TrainerCandidate,
	req SelectionRequest,
) (bool, string, error) {
	if s.db != nil {
		if _, err := s.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", candidate.TrainerID); err != nil {
			return false, "", err
		}
	}

	load, err := s.trainers.CurrentLoad(ctx, candidate.TrainerID)
	if err != nil {
		return false, "", err
	}
	if load >= capacityForRating(candidate.RatingAvg) {
		return false, reasonCapacityExhausted, nil
	}

	slot := NormalizeTimeSlot(req.Schedule.TimeSlot)
	startDate, endDate := scheduleDateRange(req.Schedule, s.cfg)

	conflict, err := s.trainers.HasSlotConflict(ctx, candidate.TrainerID, slot, startDate, endDate, req.StudentID)
	if err != nil {
		return false, "", err
	}
	if conflict {
		return false, reasonSlotConflict, nil
	}

	ok, err := s.checkTravelFeasibility(ctx, candidate.TrainerID, slot, startDate, endDate, req.StudentID)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, reasonTravelDistance, nil
	}
	return true, "", nil
}

// checkTravelFeasibility enforces the sequential-slot travel rule: every
// student the trainer serves in the previous or next hour slot on an
// overlapping date must be within the configured distance of the new
// student's home.
func (s *TrainerSelector) checkTravelFeasibility(
	ctx context.Context,
	trainerID int64,
	slot string,
	startDate time.Time,
	endDate time.Time,
	studentID int64,
) (bool, error) {
	neighborSlots := adjacentHourSlots(slot)
	if len(neighborSlots) == 0 {
		return true, nil
	}

	neighbors, err := s.trainers.AdjacentSlotStudents(ctx, trainerID, neighborSlots, startDate, endDate)
	if err != nil {
		return false, err
	}
	if len(neighbors) == 0 {
		return true, nil
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrStudentNotFound
		}
		return false, err
	}
	home, ok := student.HomeLocation()
	if !ok {
		// Cannot prove feasibility without coordinates; generation will
		// fail fast on the same condition anyway.
		return false, nil
	}

	for _, neighbor := range neighbors {
		distance := geo.Distance(home.Latitude, home.Longitude, neighbor.Latitude, neighbor.Longitude)
		if distance > s.cfg.MaxTravelDistanceKm {
			s.logger.Debug("travel rule rejected trainer",
				zap.Int64("trainer_id", trainerID),
				zap.Int64("neighbor_student_id", neighbor.StudentID),
				zap.String("neighbor_slot", neighbor.TimeSlot),
				zap.Float64("distance_km", distance),
			)
			return false, nil
		}
	}
	return true, nil
}

// scheduleDateRange estimates the calendar span the schedule will occupy.
// Daily mode spans roughly one day per session, sunday-only one week per
// session; the estimate is deliberately generous so conflict checks err on
// the safe side.
func scheduleDateRange(schedule models.ScheduleConfig, cfg EngineConfig) (time.Time, time.Time) {
	start := schedule.StartDate
	if start.IsZero() {
		start = time.Now().AddDate(0, 0, 1)
	}
	start = truncateToDay(start)

	count := schedule.SessionCount
	if count <= 0 {
		count = cfg.DefaultSessionCount
	}
	step := 1
	if schedule.RecurrenceMode == models.RecurrenceSundayOnly {
		step = 7
	}
	return start, start.AddDate(0, 0, count*step)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// exactCategoryAliases expands only the first (category) value, which the
// ranking uses to prefer exact category matches over subcategory-only
// matches.
func exactCategoryAliases(specialties []string) []string {
	if len(specialties) == 0 {
		return nil
	}
	return expandSpecialties(specialties[:1])
}

func ratingValue(rating *float64) float64 {
	if rating == nil {
		return 0
	}
	return *rating
}
