package repository

import (
	"context"
	"time"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
)

// CandidateFilter drives the ranked candidate query. Specialties must
// already be alias-expanded; ExactSpecialties holds only the expanded
// category values so exact category matches rank above subcategory-only
// matches.
type CandidateFilter struct {
	TimeSlot         string
	Gender           *string
	Specialties      []string
	ExactSpecialties []string
	ExcludeTrainerID *int64
	Limit            int
}

type TrainerRepository struct {
	db DBTX
}

func NewTrainerRepository(db DBTX) *TrainerRepository {
	return &TrainerRepository{db: db}
}

// ListCandidates returns approved trainers that have the requested slot
// available through either the free-form preferred-slot list or the
// structured availability table, ranked per the assignment policy:
// under-utilized trainers first, then rating, exact specialty match,
// ascending load, descending experience.
func (r *TrainerRepository) ListCandidates(
	ctx context.Context,
	filter CandidateFilter,
) ([]models.TrainerCandidate, error) {
	query := `
		WITH loads AS (
			SELECT trainer_id, COUNT(*) AS current_load
			FROM allocations
			WHERE status IN ('approved', 'active') AND trainer_id IS NOT NULL
			GROUP BY trainer_id
		)
		SELECT t.id, t.full_name, t.gender, p.specialties, p.preferred_slots,
			   p.rating_avg, p.experience_years, COALESCE(l.current_load, 0)
		FROM trainers t
		JOIN trainer_profiles p ON p.trainer_id = t.id
		LEFT JOIN loads l ON l.trainer_id = t.id
		WHERE t.status = 'approved'
		  AND (
				$1 = ANY(COALESCE(p.preferred_slots, '{}'))
				OR EXISTS (
					SELECT 1 FROM trainer_availability a
					WHERE a.trainer_id = t.id
					  AND a.time_slot = $1
					  AND a.is_available
					  AND NOT a.is_blocked
				)
		  )
		  AND ($2::text IS NULL OR t.gender = $2)
		  AND (cardinality($3::text[]) = 0 OR COALESCE(p.specialties, '{}') && $3)
		  AND ($5::bigint IS NULL OR t.id <> $5)
		ORDER BY (COALESCE(l.current_load, 0) < 4) DESC,
				 COALESCE(p.rating_avg, 0) DESC,
				 (COALESCE(p.specialties, '{}') && $4::text[]) DESC,
				 COALESCE(l.current_load, 0) ASC,
				 COALESCE(p.experience_years, 0) DESC,
				 t.id ASC
		LIMIT $6
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	specialties := filter.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	exact := filter.ExactSpecialties
	if exact == nil {
		exact = []string{}
	}

	rows, err := r.db.Query(
		ctx,
		query,
		filter.TimeSlot,
		filter.Gender,
		specialties,
		exact,
		filter.ExcludeTrainerID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]models.TrainerCandidate, 0)
	for rows.Next() {
		var candidate models.TrainerCandidate
		if err := rows.Scan(
			&candidate.TrainerID,
			&candidate.FullName,
			&candidate.Gender,
			&candidate.Specialties,
			&candidate.PreferredSlots,
			&candidate.RatingAvg,
			&candidate.ExperienceYears,
			&candidate.CurrentLoad,
		); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *TrainerRepository) GetCandidateByID(
	ctx context.Context,
	trainerID int64,
) (*models.TrainerCandidate, error) {
	query := `
		SELECT t.id, t.full_name, t.gender, p.specialties, p.preferred_slots,
			   p.rating_avg, p.experience_years,
			   (SELECT COUNT(*) FROM allocations
				WHERE trainer_id = t.id AND status IN ('approved', 'active'))
		FROM trainers t
		JOIN trainer_profiles p ON p.trainer_id = t.id
		WHERE t.id = $1
	`
	var candidate models.TrainerCandidate
	err := r.db.QueryRow(ctx, query, trainerID).Scan(
		&candidate.TrainerID,
		&candidate.FullName,
		&candidate.Gender,
		&candidate.Specialties,
		&candidate.PreferredSlots,
		&candidate.RatingAvg,
		&candidate.ExperienceYears,
		&candidate.CurrentLoad,
	)
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// CurrentLoad counts the trainer's allocations currently occupying
// capacity.
func (r *TrainerRepository) CurrentLoad(ctx context.Context, trainerID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM allocations
		WHERE trainer_id = $1 AND status IN ('approved', 'active')
	`
	var load int
	if err := r.db.QueryRow(ctx, query, trainerID).Scan(&load); err != nil {
		return 0, err
	}
	return load, nil
}

// HasSlotConflict reports whether the trainer already holds the same time
// slot for a different student over a date range overlapping
// [startDate, endDate], either through a committed allocation or a blocked
// availability row.
func (r *TrainerRepository) HasSlotConflict(
	ctx context.Context,
	trainerID int64,
	timeSlot string,
	startDate time.Time,
	endDate time.Time,
	excludeStudentID int64,
) (bool, error) {
	allocationQuery := `
		SELECT EXISTS (
			SELECT 1 FROM allocations
			WHERE trainer_id = $1
			  AND time_slot = $2
			  AND status IN ('approved', 'active')
			  AND student_id <> $5
			  AND start_date <= $4::date
			  AND (start_date + (session_count *
					CASE WHEN recurrence_mode = 'sunday-only' THEN 7 ELSE 1 END)
				  ) >= $3::date
		)
	`
	var conflict bool
	err := r.db.QueryRow(
		ctx,
		allocationQuery,
		trainerID,
		timeSlot,
		startDate,
		endDate,
		excludeStudentID,
	).Scan(&conflict)
	if err != nil {
		return false, err
	}
	if conflict {
		return true, nil
	}

	blockedQuery := `
		SELECT EXISTS (
			SELECT 1 FROM trainer_availability
			WHERE trainer_id = $1
			  AND time_slot = $2
			  AND is_blocked
			  AND COALESCE(blocked_from, '-infinity'::timestamptz) <= $4::date
			  AND COALESCE(blocked_to, 'infinity'::timestamptz) >= $3::date
		)
	`
	err = r.db.QueryRow(ctx, blockedQuery, trainerID, timeSlot, startDate, endDate).Scan(&conflict)
	if err != nil {
		return false, err
	}
	return conflict, nil
}

// AdjacentSlotStudents returns the geocoded students this trainer already
// serves in any of the given hour slots on dates overlapping
// [startDate, endDate]. Students without coordinates are skipped; the
// travel rule cannot measure them.
func (r *TrainerRepository) AdjacentSlotStudents(
	ctx context.Context,
	trainerID int64,
	timeSlots []string,
	startDate time.Time,
	endDate time.Time,
) ([]models.StudentPoint, error) {
	if len(timeSlots) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT s.id, a.time_slot, s.home_latitude, s.home_longitude
		FROM allocations a
		JOIN students s ON s.id = a.student_id
		WHERE a.trainer_id = $1
		  AND a.time_slot = ANY($2)
		  AND a.status IN ('approved', 'active')
		  AND s.home_latitude IS NOT NULL
		  AND s.home_longitude IS NOT NULL
		  AND a.start_date <= $4::date
		  AND (a.start_date + (a.session_count *
				CASE WHEN a.recurrence_mode = 'sunday-only' THEN 7 ELSE 1 END)
			  ) >= $3::date
	`
	rows, err := r.db.Query(ctx, query, trainerID, timeSlots, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]models.StudentPoint, 0)
	for rows.Next() {
		var point models.StudentPoint
		if err := rows.Scan(&point.StudentID, &point.TimeSlot, &point.Latitude, &point.Longitude); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// IsSlotOpen checks the two availability representations as a union: a
// trainer is available for the slot when either source says so.
func (r *TrainerRepository) IsSlotOpen(
	ctx context.Context,
	trainerID int64,
	timeSlot string,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM trainer_profiles
			WHERE trainer_id = $1 AND $2 = ANY(COALESCE(preferred_slots, '{}'))
		) OR EXISTS (
			SELECT 1 FROM trainer_availability
			WHERE trainer_id = $1 AND time_slot = $2
			  AND is_available AND NOT is_blocked
		)
	`
	var open bool
	if err := r.db.QueryRow(ctx, query, trainerID, timeSlot).Scan(&open); err != nil {
		return false, err
	}
	return open, nil
}
