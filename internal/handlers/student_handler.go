package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
)

type studentLocationUpdater interface {
	UpdateHomeLocation(ctx context.Context, id int64, address *string, latitude, longitude float64) (*models.Student, error)
}

// StudentHandler covers the remediation path for session generation: a
// student whose home address failed geocoding gets corrected coordinates
// here, then generation is retried.
type StudentHandler struct {
	students studentLocationUpdater
}

func NewStudentHandler(students studentLocationUpdater) *StudentHandler {
	return &StudentHandler{students: students}
}

type updateLocationRequest struct {
	HomeAddress *string `json:"home_address"`
	// Range-only validation: 0.0 is a legitimate coordinate component.
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

func (h *StudentHandler) UpdateLocation(c *fiber.Ctx) error {
	studentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || studentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	var req updateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	student, err := h.students.UpdateHomeLocation(c.Context(), studentID, req.HomeAddress, req.Latitude, req.Longitude)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update student location"})
	}
	return c.JSON(fiber.Map{"student": student})
}
