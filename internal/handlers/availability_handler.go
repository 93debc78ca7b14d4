package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
	"github.com/pavankrishan/tutorlink-backend/internal/services"
)

// AvailabilityHandler answers ad-hoc "could this trainer take this slot"
// probes. Reads only, so it runs on the pool rather than a transaction.
type AvailabilityHandler struct {
	selector *services.TrainerSelector
	logger   *zap.Logger
}

func NewAvailabilityHandler(pool *pgxpool.Pool, cfg services.EngineConfig, logger *zap.Logger) *AvailabilityHandler {
	selector := services.NewTrainerSelector(
		nil,
		repository.NewTrainerRepository(pool),
		repository.NewStudentRepository(pool),
		cfg,
		logger,
	)
	return &AvailabilityHandler{selector: selector, logger: logger}
}

func (h *AvailabilityHandler) Check(c *fiber.Ctx) error {
	trainerID, err := strconv.ParseInt(strings.TrimSpace(c.Query("trainer_id")), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id is required"})
	}
	timeSlot := strings.TrimSpace(c.Query("time_slot"))
	if timeSlot == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "time_slot is required"})
	}
	studentID, err := strconv.ParseInt(strings.TrimSpace(c.Query("student_id")), 10, 64)
	if err != nil || studentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "student_id is required"})
	}

	schedule := models.ScheduleConfig{
		TimeSlot:       timeSlot,
		RecurrenceMode: models.RecurrenceDaily,
	}
	if mode := strings.TrimSpace(c.Query("recurrence_mode")); mode != "" {
		if mode != models.RecurrenceDaily && mode != models.RecurrenceSundayOnly {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recurrence_mode must be daily or sunday-only"})
		}
		schedule.RecurrenceMode = mode
	}
	if raw := strings.TrimSpace(c.Query("start_date")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_date must be a YYYY-MM-DD date"})
		}
		schedule.StartDate = parsed
	}
	if raw := strings.TrimSpace(c.Query("session_count")); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session_count"})
		}
		schedule.SessionCount = count
	}

	available, reasons, err := h.selector.CheckSlotAvailability(c.Context(), trainerID, services.SelectionRequest{
		StudentID: studentID,
		Schedule:  schedule,
	})
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{
		"trainer_id": trainerID,
		"time_slot":  timeSlot,
		"available":  available,
		"reasons":    reasons,
	})
}
