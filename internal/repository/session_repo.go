package repository

import (
	"context"
	"time"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
)

const sessionColumns = `
	id, allocation_id, student_id, trainer_id, course_id,
	scheduled_date, scheduled_time, duration_min, status,
	home_latitude, home_longitude, otp, session_number, total_sessions,
	created_at, updated_at
`

type CreateSessionInput struct {
	AllocationID    int64
	StudentID       int64
	TrainerID       int64
	CourseID        *int64
	ScheduledDate   time.Time
	ScheduledTime   string
	DurationMinutes int
	HomeLatitude    float64
	HomeLongitude   float64
	OTP             string
	SessionNumber   int
	TotalSessions   int
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO sessions (
			allocation_id, student_id, trainer_id, course_id,
			scheduled_date, scheduled_time, duration_min, status,
			home_latitude, home_longitude, otp, session_number, total_sessions
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8, $9, $10, $11, $12)
		RETURNING ` + sessionColumns

	var session models.Session
	err := r.db.QueryRow(
		ctx,
		query,
		input.AllocationID,
		input.StudentID,
		input.TrainerID,
		input.CourseID,
		input.ScheduledDate,
		input.ScheduledTime,
		input.DurationMinutes,
		input.HomeLatitude,
		input.HomeLongitude,
		input.OTP,
		input.SessionNumber,
		input.TotalSessions,
	).Scan(
		&session.ID,
		&session.AllocationID,
		&session.StudentID,
		&session.TrainerID,
		&session.CourseID,
		&session.ScheduledDate,
		&session.ScheduledTime,
		&session.DurationMinutes,
		&session.Status,
		&session.HomeLatitude,
		&session.HomeLongitude,
		&session.OTP,
		&session.SessionNumber,
		&session.TotalSessions,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Exists is the duplicate-detection probe matching the unique index on
// (allocation, student, trainer, date, time).
func (r *SessionRepository) Exists(
	ctx context.Context,
	allocationID int64,
	studentID int64,
	trainerID int64,
	scheduledDate time.Time,
	scheduledTime string,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE allocation_id = $1
			  AND student_id = $2
			  AND trainer_id = $3
			  AND scheduled_date = $4
			  AND scheduled_time = $5
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, allocationID, studentID, trainerID, scheduledDate, scheduledTime).
		Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// LastSessionNumber returns 0 when the allocation has no sessions yet.
func (r *SessionRepository) LastSessionNumber(
	ctx context.Context,
	allocationID int64,
) (int, error) {
	query := `
		SELECT COALESCE(MAX(session_number), 0) FROM sessions WHERE allocation_id = $1
	`
	var last int
	if err := r.db.QueryRow(ctx, query, allocationID).Scan(&last); err != nil {
		return 0, err
	}
	return last, nil
}

func (r *SessionRepository) CountByAllocation(
	ctx context.Context,
	allocationID int64,
) (int, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE allocation_id = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, allocationID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SessionRepository) ListByAllocation(
	ctx context.Context,
	allocationID int64,
) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE allocation_id = $1
		ORDER BY scheduled_date ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, allocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.AllocationID,
			&session.StudentID,
			&session.TrainerID,
			&session.CourseID,
			&session.ScheduledDate,
			&session.ScheduledTime,
			&session.DurationMinutes,
			&session.Status,
			&session.HomeLatitude,
			&session.HomeLongitude,
			&session.OTP,
			&session.SessionNumber,
			&session.TotalSessions,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
