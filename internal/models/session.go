package models

import "time"

const (
	SessionStatusScheduled = "scheduled"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

// Session is one concrete dated/timed teaching visit generated from an
// allocation. Home coordinates are snapshotted at generation time so the
// visit record survives later address edits.
type Session struct {
	ID              int64     `json:"id"`
	AllocationID    int64     `json:"allocation_id"`
	StudentID       int64     `json:"student_id"`
	TrainerID       int64     `json:"trainer_id"`
	CourseID        *int64    `json:"course_id"`
	ScheduledDate   time.Time `json:"scheduled_date"`
	ScheduledTime   string    `json:"scheduled_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	HomeLatitude    *float64  `json:"home_latitude"`
	HomeLongitude   *float64  `json:"home_longitude"`
	OTP             string    `json:"otp"`
	SessionNumber   int       `json:"session_number"`
	TotalSessions   int       `json:"total_sessions"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
