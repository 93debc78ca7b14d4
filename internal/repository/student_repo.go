package repository

import (
	"context"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
)

type StudentRepository struct {
	db DBTX
}

func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	query := `
		SELECT id, full_name, home_address, home_latitude, home_longitude, created_at, updated_at
		FROM students
		WHERE id = $1
	`
	var student models.Student
	err := r.db.QueryRow(ctx, query, id).Scan(
		&student.ID,
		&student.FullName,
		&student.HomeAddress,
		&student.HomeLatitude,
		&student.HomeLongitude,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) UpdateHomeLocation(
	ctx context.Context,
	id int64,
	address *string,
	latitude float64,
	longitude float64,
) (*models.Student, error) {
	query := `
		UPDATE students
		SET home_address = COALESCE($2, home_address),
			home_latitude = $3,
			home_longitude = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, full_name, home_address, home_latitude, home_longitude, created_at, updated_at
	`
	var student models.Student
	err := r.db.QueryRow(ctx, query, id, address, latitude, longitude).Scan(
		&student.ID,
		&student.FullName,
		&student.HomeAddress,
		&student.HomeLatitude,
		&student.HomeLongitude,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &student, nil
}
