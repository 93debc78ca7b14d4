package services

import "time"

// EngineConfig carries the tunables of the assignment and scheduling
// engine. Values are injected at construction; nothing in the engine reads
// the environment directly.
type EngineConfig struct {
	// MaxTravelDistanceKm bounds the Haversine distance between a new
	// student and any student the trainer already serves in an adjacent
	// hour slot.
	MaxTravelDistanceKm float64

	DefaultSessionCount       int
	DefaultDurationMinutes    int
	SundayOnlyDurationMinutes int

	// AttemptMultiplier bounds the date-stepping generator: it gives up
	// after target*multiplier candidate dates and logs under-generation.
	AttemptMultiplier int

	// SundayHolidayUntil marks the end of the window in which daily-mode
	// schedules skip Sundays. Business policy with no stated long-term
	// rule; kept as configuration on purpose.
	SundayHolidayUntil time.Time

	CandidateLimit int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxTravelDistanceKm:       5,
		DefaultSessionCount:       30,
		DefaultDurationMinutes:    40,
		SundayOnlyDurationMinutes: 80,
		AttemptMultiplier:         2,
		SundayHolidayUntil:        time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		CandidateLimit:            50,
	}
}

func (c EngineConfig) durationForMode(mode string) int {
	if mode == "sunday-only" {
		return c.SundayOnlyDurationMinutes
	}
	return c.DefaultDurationMinutes
}
