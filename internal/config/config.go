package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	DBUrl  string
	AppEnv string

	// Engine tunables, injected into the scheduling engine at startup.
	MaxTravelDistanceKm       float64
	DefaultSessionCount       int
	DefaultSessionDurationMin int
	SundaySessionDurationMin  int
	GenerationAttemptMultiple int
	SundayHolidayUntil        time.Time
	CandidateLimit            int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := getEnv("DB_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}

	holidayUntil, err := getEnvDate("SUNDAY_HOLIDAY_UNTIL", time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:   getEnv("PORT", "8080"),
		DBUrl:  dbURL,
		AppEnv: normalizeEnv(getEnv("APP_ENV", "production")),

		MaxTravelDistanceKm:       getEnvFloat("MAX_TRAVEL_DISTANCE_KM", 5),
		DefaultSessionCount:       getEnvInt("DEFAULT_SESSION_COUNT", 30),
		DefaultSessionDurationMin: getEnvInt("DEFAULT_SESSION_DURATION_MIN", 40),
		SundaySessionDurationMin:  getEnvInt("SUNDAY_SESSION_DURATION_MIN", 80),
		GenerationAttemptMultiple: getEnvInt("GENERATION_ATTEMPT_MULTIPLE", 2),
		SundayHolidayUntil:        holidayUntil,
		CandidateLimit:            getEnvInt("CANDIDATE_LIMIT", 50),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDate(key string, fallback time.Time) (time.Time, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD date: %w", key, err)
	}
	return parsed, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
