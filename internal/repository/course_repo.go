package repository

import (
	"context"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
)

type CourseRepository struct {
	db DBTX
}

func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `
		SELECT id, name, category, subcategory, created_at, updated_at
		FROM courses
		WHERE id = $1
	`
	var course models.Course
	err := r.db.QueryRow(ctx, query, id).Scan(
		&course.ID,
		&course.Name,
		&course.Category,
		&course.Subcategory,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

type PurchaseRepository struct {
	db DBTX
}

func NewPurchaseRepository(db DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) GetByID(ctx context.Context, id int64) (*models.Purchase, error) {
	query := `
		SELECT id, student_id, course_id, session_count, additional_sessions,
			   preferred_slot, preferred_start_date, status, created_at
		FROM purchases
		WHERE id = $1
	`
	var purchase models.Purchase
	err := r.db.QueryRow(ctx, query, id).Scan(
		&purchase.ID,
		&purchase.StudentID,
		&purchase.CourseID,
		&purchase.SessionCount,
		&purchase.AdditionalSessions,
		&purchase.PreferredSlot,
		&purchase.PreferredStartDate,
		&purchase.Status,
		&purchase.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// LatestForStudentCourse returns the most recent completed purchase for
// the pair, used when an upgrade request arrives without a purchase id.
func (r *PurchaseRepository) LatestForStudentCourse(
	ctx context.Context,
	studentID int64,
	courseID int64,
) (*models.Purchase, error) {
	query := `
		SELECT id, student_id, course_id, session_count, additional_sessions,
			   preferred_slot, preferred_start_date, status, created_at
		FROM purchases
		WHERE student_id = $1 AND course_id = $2 AND status = 'completed'
		ORDER BY id DESC
		LIMIT 1
	`
	var purchase models.Purchase
	err := r.db.QueryRow(ctx, query, studentID, courseID).Scan(
		&purchase.ID,
		&purchase.StudentID,
		&purchase.CourseID,
		&purchase.SessionCount,
		&purchase.AdditionalSessions,
		&purchase.PreferredSlot,
		&purchase.PreferredStartDate,
		&purchase.Status,
		&purchase.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}
