package models

import "time"

type Trainer struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Gender    *string   `json:"gender"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TrainerProfile struct {
	ID              int64     `json:"id"`
	TrainerID       int64     `json:"trainer_id"`
	Specialties     *[]string `json:"specialties"`
	PreferredSlots  *[]string `json:"preferred_slots"`
	RatingAvg       *float64  `json:"rating_avg"`
	RatingCount     *int      `json:"rating_count"`
	ExperienceYears *int      `json:"experience_years"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TrainerCandidate is a trainer joined with its profile and live load,
// as returned by the ranked candidate query.
type TrainerCandidate struct {
	TrainerID       int64     `json:"trainer_id"`
	FullName        string    `json:"full_name"`
	Gender          *string   `json:"gender"`
	Specialties     *[]string `json:"specialties"`
	PreferredSlots  *[]string `json:"preferred_slots"`
	RatingAvg       *float64  `json:"rating_avg"`
	ExperienceYears *int      `json:"experience_years"`
	CurrentLoad     int       `json:"current_load"`
}

// AvailabilitySlot is one row of the structured per-slot availability
// table. A trainer's slot is open when a row exists with is_available and
// no blocking flag; the free-form preferred_slots list on the profile is an
// independent, equally valid source.
type AvailabilitySlot struct {
	ID          int64      `json:"id"`
	TrainerID   int64      `json:"trainer_id"`
	TimeSlot    string     `json:"time_slot"`
	IsAvailable bool       `json:"is_available"`
	IsBlocked   bool       `json:"is_blocked"`
	BlockedFrom *time.Time `json:"blocked_from"`
	BlockedTo   *time.Time `json:"blocked_to"`
	CreatedAt   time.Time  `json:"created_at"`
}
