package models

import (
	"time"

	"github.com/pavankrishan/tutorlink-backend/pkg/geo"
)

type Student struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	HomeAddress   *string   `json:"home_address"`
	HomeLatitude  *float64  `json:"home_latitude"`
	HomeLongitude *float64  `json:"home_longitude"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HomeLocation returns the student's geocoded coordinates, or false when
// either component is missing or out of range.
func (s *Student) HomeLocation() (geo.Coordinate, bool) {
	if s == nil || s.HomeLatitude == nil || s.HomeLongitude == nil {
		return geo.Coordinate{}, false
	}
	coord := geo.Coordinate{Latitude: *s.HomeLatitude, Longitude: *s.HomeLongitude}
	if !coord.Valid() {
		return geo.Coordinate{}, false
	}
	return coord, true
}

// StudentPoint is a neighboring student's location in an adjacent hour
// slot, used by the sequential-slot travel check.
type StudentPoint struct {
	StudentID int64   `json:"student_id"`
	TimeSlot  string  `json:"time_slot"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
