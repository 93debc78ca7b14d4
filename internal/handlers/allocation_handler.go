package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/pavankrishan/tutorlink-backend/internal/models"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
	"github.com/pavankrishan/tutorlink-backend/internal/services"
)

var validate = validator.New()

const dateLayout = "2006-01-02"

type allocationApplicationService interface {
	CreateAllocation(ctx context.Context, input services.CreateAllocationInput) (*models.Allocation, bool, error)
	Approve(ctx context.Context, allocationID int64, approvedBy *int64, genderPreference *string) (*models.Allocation, error)
	Reject(ctx context.Context, allocationID int64, rejectedBy *int64, reason string) (*models.Allocation, error)
	Activate(ctx context.Context, allocationID int64) (*models.Allocation, error)
	Cancel(ctx context.Context, allocationID int64) (*models.Allocation, error)
	Complete(ctx context.Context, allocationID int64) (*models.Allocation, error)
	Update(ctx context.Context, allocationID int64, input services.UpdateAllocationInput) (*models.Allocation, error)
	Get(ctx context.Context, allocationID int64) (*models.Allocation, error)
	List(ctx context.Context, filter repository.AllocationListFilter) ([]models.Allocation, error)
	RegenerateSessions(ctx context.Context, allocationID int64) (*services.GenerationSummary, error)
}

type AllocationHandler struct {
	service allocationApplicationService
}

func NewAllocationHandler(service *services.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

type createAllocationRequest struct {
	StudentID        int64   `json:"student_id" validate:"required,gt=0"`
	CourseID         *int64  `json:"course_id" validate:"omitempty,gt=0"`
	TrainerID        *int64  `json:"trainer_id" validate:"omitempty,gt=0"`
	PurchaseID       *int64  `json:"purchase_id" validate:"omitempty,gt=0"`
	TimeSlot         string  `json:"time_slot"`
	StartDate        *string `json:"start_date"`
	RecurrenceMode   string  `json:"recurrence_mode" validate:"omitempty,oneof=daily sunday-only"`
	SessionCount     int     `json:"session_count" validate:"omitempty,oneof=10 20 30"`
	GenderPreference *string `json:"gender_preference" validate:"omitempty,oneof=male female"`
	Notes            *string `json:"notes"`
	RequestedBy      *int64  `json:"requested_by"`
	AutoApprove      bool    `json:"auto_approve"`
}

func (h *AllocationHandler) Create(c *fiber.Ctx) error {
	var req createAllocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var startDate *time.Time
	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(*req.StartDate))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_date must be a YYYY-MM-DD date"})
		}
		startDate = &parsed
	}

	allocation, created, err := h.service.CreateAllocation(c.Context(), services.CreateAllocationInput{
		StudentID:        req.StudentID,
		CourseID:         req.CourseID,
		TrainerID:        req.TrainerID,
		PurchaseID:       req.PurchaseID,
		TimeSlot:         req.TimeSlot,
		StartDate:        startDate,
		RecurrenceMode:   req.RecurrenceMode,
		SessionCount:     req.SessionCount,
		GenderPreference: req.GenderPreference,
		Notes:            req.Notes,
		RequestedBy:      req.RequestedBy,
	})
	if err != nil {
		return mapAllocationError(c, err)
	}
	if !created {
		return c.JSON(fiber.Map{"allocation": allocation, "merged": true})
	}

	if req.AutoApprove {
		approved, err := h.service.Approve(c.Context(), allocation.ID, req.RequestedBy, req.GenderPreference)
		if errors.Is(err, services.ErrManualReviewRequired) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"allocation": approved,
				"reason":     derefString(approved.PendingReason),
			})
		}
		if err != nil {
			return mapAllocationError(c, err)
		}
		allocation = approved
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"allocation": allocation})
}

type approveAllocationRequest struct {
	ApprovedBy       *int64  `json:"approved_by"`
	GenderPreference *string `json:"gender_preference" validate:"omitempty,oneof=male female"`
}

func (h *AllocationHandler) Approve(c *fiber.Ctx) error {
	allocationID, err := parseAllocationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid allocation id"})
	}

	var req approveAllocationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	allocation, err := h.service.Approve(c.Context(), allocationID, req.ApprovedBy, req.GenderPreference)
	if errors.Is(err, services.ErrManualReviewRequired) {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"allocation": allocation,
			"reason":     derefString(allocation.PendingReason),
		})
	}
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"allocation": allocation})
}

type rejectAllocationRequest struct {
	RejectedBy *int64 `json:"rejected_by"`
	Reason     string `json:"reason" validate:"required"`
}

func (h *AllocationHandler) Reject(c *fiber.Ctx) error {
	allocationID, err := parseAllocationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid allocation id"})
	}

	var req rejectAllocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	allocation, err := h.service.Reject(c.Context(), allocationID, req.RejectedBy, req.Reason)
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"allocation": allocation})
}

func (h *AllocationHandler) Activate(c *fiber.Ctx) error {
	return h.transition(c, h.service.Activate)
}

func (h *AllocationHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.service.Cancel)
}

func (h *AllocationHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, h.service.Complete)
}

func (h *AllocationHandler) transition(
	c *fiber.Ctx,
	fn func(ctx context.Context, allocationID int64) (*models.Allocation, error),
) error {
	allocationID, err := parseAllocationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid allocation id"})
	}
	allocation, err := fn(c.Context(), allocationID)
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"allocation": allocation})
}

type updateAllocationRequest struct {
	Notes     *string `json:"notes"`
	TimeSlot  *string `json:"time_slot"`
	StartDate *string `json:"start_date"`
}

func (h *AllocationHandler) Update(c *fiber.Ctx) error {
	allocationID, err := parseAllocationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid allocation id"})
	}

	var req updateAllocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var startDate *time.Time
	if req.StartDate != nil {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(*req.StartDate))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_date must be a YYYY-MM-DD date"})
		}
		startDate = &parsed
	}

	allocation, err := h.service.Update(c.Context(), allocationID, services.UpdateAllocationInput{
		Notes:     req.Notes,
		TimeSlot:  req.TimeSlot,
		StartDate: startDate,
	})
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"allocation": allocation})
}

func (h *AllocationHandler) Get(c *fiber.Ctx) error {
	allocationID, err := parseAllocationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid allocation id"})
	}
	allocation, err := h.service.Get(c.Context(), allocationID)
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"allocation": allocation})
}

func (h *AllocationHandler) List(c *fiber.Ctx) error {
	filter := repository.AllocationListFilter{
		Status: strings.TrimSpace(c.Query("status")),
	}
	if studentID, err := queryInt64(c, "student_id"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student_id"})
	} else if studentID != nil {
		filter.StudentID = studentID
	}
	if trainerID, err := queryInt64(c, "trainer_id"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer_id"})
	} else if trainerID != nil {
		filter.TrainerID = trainerID
	}
	if courseID, err := queryInt64(c, "course_id"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid course_id"})
	} else if courseID != nil {
		filter.CourseID = courseID
	}

	allocations, err := h.service.List(c.Context(), filter)
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"allocations": allocations})
}

func (h *AllocationHandler) GenerateSessions(c *fiber.Ctx) error {
	allocationID, err := parseAllocationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid allocation id"})
	}
	summary, err := h.service.RegenerateSessions(c.Context(), allocationID)
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(fiber.Map{"summary": summary})
}

func parseAllocationID(c *fiber.Ctx) (int64, error) {
	allocationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || allocationID <= 0 {
		return 0, errors.New("invalid allocation id")
	}
	return allocationID, nil
}

func queryInt64(c *fiber.Ctx, key string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, errors.New("invalid " + key)
	}
	return &value, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func mapAllocationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrTrainerNotFound),
		errors.Is(err, services.ErrAllocationNotFound),
		errors.Is(err, services.ErrNoUpgradableAllocation),
		errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAllocationExists),
		errors.Is(err, services.ErrTrainerNotEligible):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCapacityExhausted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     err.Error(),
			"retryable": true,
			"hint":      "try another time slot",
		})
	case errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrAllocationNotCommitted),
		errors.Is(err, services.ErrMissingHomeLocation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process allocation request"})
	}
}
