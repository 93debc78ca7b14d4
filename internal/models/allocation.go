package models

import "time"

const (
	AllocationStatusPending   = "pending"
	AllocationStatusApproved  = "approved"
	AllocationStatusActive    = "active"
	AllocationStatusRejected  = "rejected"
	AllocationStatusCancelled = "cancelled"
	AllocationStatusCompleted = "completed"
)

const (
	RecurrenceDaily      = "daily"
	RecurrenceSundayOnly = "sunday-only"
)

// ScheduleConfig is the resolved schedule for an allocation. It replaces
// the loose metadata bag the purchase flow sends with named fields; unknown
// shapes are rejected at the handler boundary.
type ScheduleConfig struct {
	TimeSlot        string    `json:"time_slot"`
	StartDate       time.Time `json:"start_date"`
	RecurrenceMode  string    `json:"recurrence_mode"`
	SessionCount    int       `json:"session_count"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Allocation is a committed (or pending) teaching relationship between one
// student, one course, and at most one trainer. TrainerID is null only
// while the allocation is pending manual assignment.
type Allocation struct {
	ID             int64          `json:"id"`
	StudentID      int64          `json:"student_id"`
	TrainerID      *int64         `json:"trainer_id"`
	CourseID       *int64         `json:"course_id"`
	Status         string         `json:"status"`
	Schedule       ScheduleConfig `json:"schedule"`
	UsedFallback   bool           `json:"used_fallback"`
	PendingReason  *string        `json:"pending_reason"`
	UpgradedFromID *int64         `json:"upgraded_from_id"`
	UpgradeWarning *string        `json:"upgrade_warning"`
	Notes          *string        `json:"notes"`
	RequestedBy    *int64         `json:"requested_by"`
	RequestedAt    time.Time      `json:"requested_at"`
	AllocatedBy    *int64         `json:"allocated_by"`
	AllocatedAt    *time.Time     `json:"allocated_at"`
	RejectedBy     *int64         `json:"rejected_by"`
	RejectedAt     *time.Time     `json:"rejected_at"`
	RejectedReason *string        `json:"rejected_reason"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsCommitted reports whether the allocation currently occupies trainer
// capacity.
func (a *Allocation) IsCommitted() bool {
	return a.Status == AllocationStatusApproved || a.Status == AllocationStatusActive
}
