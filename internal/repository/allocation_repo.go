package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pavankrishan/tutorlink-backend/internal/models"
)

const allocationColumns = `
	id, student_id, trainer_id, course_id, status,
	time_slot, start_date, recurrence_mode, session_count, session_duration_min,
	used_fallback, pending_reason, upgraded_from_id, upgrade_warning, notes,
	requested_by, requested_at, allocated_by, allocated_at,
	rejected_by, rejected_at, rejected_reason, created_at, updated_at
`

type CreateAllocationInput struct {
	StudentID      int64
	TrainerID      *int64
	CourseID       *int64
	Status         string
	Schedule       models.ScheduleConfig
	UsedFallback   bool
	PendingReason  *string
	UpgradedFromID *int64
	UpgradeWarning *string
	Notes          *string
	RequestedBy    *int64
}

type AllocationListFilter struct {
	StudentID *int64
	TrainerID *int64
	CourseID  *int64
	Status    string
}

type AllocationRepository struct {
	db DBTX
}

func NewAllocationRepository(db DBTX) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func scanAllocation(row pgx.Row) (*models.Allocation, error) {
	var a models.Allocation
	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&a.TrainerID,
		&a.CourseID,
		&a.Status,
		&a.Schedule.TimeSlot,
		&a.Schedule.StartDate,
		&a.Schedule.RecurrenceMode,
		&a.Schedule.SessionCount,
		&a.Schedule.DurationMinutes,
		&a.UsedFallback,
		&a.PendingReason,
		&a.UpgradedFromID,
		&a.UpgradeWarning,
		&a.Notes,
		&a.RequestedBy,
		&a.RequestedAt,
		&a.AllocatedBy,
		&a.AllocatedAt,
		&a.RejectedBy,
		&a.RejectedAt,
		&a.RejectedReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AllocationRepository) Create(
	ctx context.Context,
	input CreateAllocationInput,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		INSERT INTO allocations (
			student_id, trainer_id, course_id, status,
			time_slot, start_date, recurrence_mode, session_count, session_duration_min,
			used_fallback, pending_reason, upgraded_from_id, upgrade_warning, notes,
			requested_by, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		RETURNING %s
	`, allocationColumns)

	return scanAllocation(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TrainerID,
		input.CourseID,
		input.Status,
		input.Schedule.TimeSlot,
		input.Schedule.StartDate,
		input.Schedule.RecurrenceMode,
		input.Schedule.SessionCount,
		input.Schedule.DurationMinutes,
		input.UsedFallback,
		input.PendingReason,
		input.UpgradedFromID,
		input.UpgradeWarning,
		input.Notes,
		input.RequestedBy,
	))
}

func (r *AllocationRepository) GetByID(ctx context.Context, id int64) (*models.Allocation, error) {
	query := fmt.Sprintf(`SELECT %s FROM allocations WHERE id = $1`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id))
}

func (r *AllocationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Allocation, error) {
	query := fmt.Sprintf(`SELECT %s FROM allocations WHERE id = $1 FOR UPDATE`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id))
}

// FindOpenForStudentCourse is the duplicate-create guard lookup: any
// allocation in pending/approved/active for the (student, course) pair.
func (r *AllocationRepository) FindOpenForStudentCourse(
	ctx context.Context,
	studentID int64,
	courseID int64,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM allocations
		WHERE student_id = $1 AND course_id = $2
		  AND status IN ('pending', 'approved', 'active')
		ORDER BY id DESC
		LIMIT 1
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, studentID, courseID))
}

// FindCommittedForStudentCourse returns the approved/active allocation the
// upgrade coordinator extends.
func (r *AllocationRepository) FindCommittedForStudentCourse(
	ctx context.Context,
	studentID int64,
	courseID int64,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM allocations
		WHERE student_id = $1 AND course_id = $2
		  AND status IN ('approved', 'active')
		ORDER BY id DESC
		LIMIT 1
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, studentID, courseID))
}

// Approve flips a pending allocation to approved, binding the trainer and
// recording the actor. Returns pgx.ErrNoRows when the allocation is no
// longer pending.
func (r *AllocationRepository) Approve(
	ctx context.Context,
	id int64,
	trainerID int64,
	approvedBy *int64,
	usedFallback bool,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		UPDATE allocations
		SET status = 'approved',
			trainer_id = $2,
			allocated_by = $3,
			allocated_at = NOW(),
			used_fallback = used_fallback OR $4,
			pending_reason = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id, trainerID, approvedBy, usedFallback))
}

// Reject flips a pending allocation to rejected. Returns pgx.ErrNoRows
// when the allocation is no longer pending.
func (r *AllocationRepository) Reject(
	ctx context.Context,
	id int64,
	rejectedBy *int64,
	reason string,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		UPDATE allocations
		SET status = 'rejected',
			rejected_by = $2,
			rejected_at = NOW(),
			rejected_reason = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id, rejectedBy, reason))
}

// UpdateStatusIfCurrent is a compare-and-swap status flip; pgx.ErrNoRows
// signals a stale transition attempt.
func (r *AllocationRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id int64,
	currentStatus string,
	nextStatus string,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		UPDATE allocations
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus))
}

// MarkPendingReason annotates a pending allocation that could not be
// assigned with a machine-readable reason code.
func (r *AllocationRepository) MarkPendingReason(
	ctx context.Context,
	id int64,
	reason string,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		UPDATE allocations
		SET pending_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id, reason))
}

// ExtendSessions grows the allocation's session count in place, optionally
// recording an availability warning for manual follow-up.
func (r *AllocationRepository) ExtendSessions(
	ctx context.Context,
	id int64,
	additionalSessions int,
	warning *string,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		UPDATE allocations
		SET session_count = session_count + $2,
			upgrade_warning = COALESCE($3, upgrade_warning),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('approved', 'active')
		RETURNING %s
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id, additionalSessions, warning))
}

type UpdateAllocationInput struct {
	Notes     *string
	TimeSlot  *string
	StartDate *time.Time
}

func (r *AllocationRepository) Update(
	ctx context.Context,
	id int64,
	input UpdateAllocationInput,
) (*models.Allocation, error) {
	query := fmt.Sprintf(`
		UPDATE allocations
		SET notes = COALESCE($2, notes),
			time_slot = COALESCE($3, time_slot),
			start_date = COALESCE($4, start_date),
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, allocationColumns)
	return scanAllocation(r.db.QueryRow(ctx, query, id, input.Notes, input.TimeSlot, input.StartDate))
}

func (r *AllocationRepository) List(
	ctx context.Context,
	filter AllocationListFilter,
) ([]models.Allocation, error) {
	args := []any{}
	whereParts := []string{"TRUE"}

	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		whereParts = append(whereParts, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.TrainerID != nil {
		args = append(args, *filter.TrainerID)
		whereParts = append(whereParts, fmt.Sprintf("trainer_id = $%d", len(args)))
	}
	if filter.CourseID != nil {
		args = append(args, *filter.CourseID)
		whereParts = append(whereParts, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM allocations
		WHERE %s
		ORDER BY id DESC
	`, allocationColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allocations := make([]models.Allocation, 0)
	for rows.Next() {
		allocation, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, *allocation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return allocations, nil
}
