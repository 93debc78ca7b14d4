package models

import "time"

type Course struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    *string   `json:"category"`
	Subcategory *string   `json:"subcategory"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Purchase is the read-only purchase record supplying the session-count
// tier and preferred schedule.
type Purchase struct {
	ID                 int64      `json:"id"`
	StudentID          int64      `json:"student_id"`
	CourseID           int64      `json:"course_id"`
	SessionCount       *int       `json:"session_count"`
	AdditionalSessions *int       `json:"additional_sessions"`
	PreferredSlot      *string    `json:"preferred_slot"`
	PreferredStartDate *time.Time `json:"preferred_start_date"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
}
