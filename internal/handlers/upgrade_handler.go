package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pavankrishan/tutorlink-backend/internal/services"
)

type UpgradeHandler struct {
	service *services.UpgradeService
}

func NewUpgradeHandler(service *services.UpgradeService) *UpgradeHandler {
	return &UpgradeHandler{service: service}
}

type upgradeRequest struct {
	StudentID          int64  `json:"student_id" validate:"required,gt=0"`
	CourseID           int64  `json:"course_id" validate:"required,gt=0"`
	AdditionalSessions *int   `json:"additional_sessions" validate:"omitempty,gt=0"`
	NewTier            *int   `json:"new_tier" validate:"omitempty,oneof=10 20 30"`
	RequestedBy        *int64 `json:"requested_by"`
}

func (h *UpgradeHandler) Upgrade(c *fiber.Ctx) error {
	var purchaseID *int64
	if raw := strings.TrimSpace(c.Params("id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid purchase id"})
		}
		purchaseID = &parsed
	}

	var req upgradeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.service.Upgrade(c.Context(), services.UpgradeInput{
		StudentID:          req.StudentID,
		CourseID:           req.CourseID,
		PurchaseID:         purchaseID,
		AdditionalSessions: req.AdditionalSessions,
		NewTier:            req.NewTier,
		RequestedBy:        req.RequestedBy,
	})
	if err != nil {
		return mapAllocationError(c, err)
	}
	return c.JSON(result)
}
