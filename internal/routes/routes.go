package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pavankrishan/tutorlink-backend/internal/config"
	"github.com/pavankrishan/tutorlink-backend/internal/handlers"
	"github.com/pavankrishan/tutorlink-backend/internal/repository"
	"github.com/pavankrishan/tutorlink-backend/internal/services"
)

func engineConfig(cfg *config.Config) services.EngineConfig {
	engine := services.DefaultEngineConfig()
	if cfg.MaxTravelDistanceKm > 0 {
		engine.MaxTravelDistanceKm = cfg.MaxTravelDistanceKm
	}
	if cfg.DefaultSessionCount > 0 {
		engine.DefaultSessionCount = cfg.DefaultSessionCount
	}
	if cfg.DefaultSessionDurationMin > 0 {
		engine.DefaultDurationMinutes = cfg.DefaultSessionDurationMin
	}
	if cfg.SundaySessionDurationMin > 0 {
		engine.SundayOnlyDurationMinutes = cfg.SundaySessionDurationMin
	}
	if cfg.GenerationAttemptMultiple > 0 {
		engine.AttemptMultiplier = cfg.GenerationAttemptMultiple
	}
	if !cfg.SundayHolidayUntil.IsZero() {
		engine.SundayHolidayUntil = cfg.SundayHolidayUntil
	}
	if cfg.CandidateLimit > 0 {
		engine.CandidateLimit = cfg.CandidateLimit
	}
	return engine
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger *zap.Logger) {
	allocationRepo := repository.NewAllocationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	engine := engineConfig(cfg)
	effects := services.NewEffectRunner(logger)
	publisher := services.NewLogEventPublisher(logger)
	notifier := services.NewLogNotificationDispatcher(logger)
	payroll := services.NewLogPayrollLedger(logger)
	generator := services.NewScheduleGenerator(sessionRepo, studentRepo, engine, logger)

	allocationService := services.NewAllocationService(
		db,
		allocationRepo,
		sessionRepo,
		studentRepo,
		courseRepo,
		purchaseRepo,
		generator,
		effects,
		publisher,
		notifier,
		payroll,
		engine,
		logger,
	)
	upgradeService := services.NewUpgradeService(
		db,
		allocationRepo,
		sessionRepo,
		purchaseRepo,
		courseRepo,
		generator,
		effects,
		publisher,
		engine,
		logger,
	)

	allocationHandler := handlers.NewAllocationHandler(allocationService)
	upgradeHandler := handlers.NewUpgradeHandler(upgradeService)
	availabilityHandler := handlers.NewAvailabilityHandler(db, engine, logger)
	studentHandler := handlers.NewStudentHandler(studentRepo)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	allocations := api.Group("/allocations")
	allocations.Post("", allocationHandler.Create)
	allocations.Get("", allocationHandler.List)
	allocations.Get("/:id", allocationHandler.Get)
	allocations.Put("/:id", allocationHandler.Update)
	allocations.Post("/:id/approve", allocationHandler.Approve)
	allocations.Post("/:id/reject", allocationHandler.Reject)
	allocations.Post("/:id/activate", allocationHandler.Activate)
	allocations.Post("/:id/cancel", allocationHandler.Cancel)
	allocations.Post("/:id/complete", allocationHandler.Complete)
	allocations.Post("/:id/sessions/generate", allocationHandler.GenerateSessions)

	purchases := api.Group("/purchases")
	purchases.Post("/:id/upgrade", upgradeHandler.Upgrade)

	trainers := api.Group("/trainers")
	trainers.Get("/availability", availabilityHandler.Check)

	students := api.Group("/students")
	students.Put("/:id/location", studentHandler.UpdateLocation)
}
