package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAllocationExists       = errors.New("allocation already exists for student and course")
	ErrTrainerNotEligible     = errors.New("trainer not eligible for requested schedule")
	ErrCapacityExhausted      = errors.New("trainer capacity exhausted for slot")
	ErrManualReviewRequired   = errors.New("no trainer available, allocation pending manual review")
	ErrMissingHomeLocation    = errors.New("student home location missing or invalid")
	ErrAllocationNotCommitted = errors.New("allocation is not approved or active")
	ErrNoUpgradableAllocation = errors.New("no approved or active allocation to upgrade")
	ErrStudentNotFound        = errors.New("student not found")
	ErrTrainerNotFound        = errors.New("trainer not found")
	ErrAllocationNotFound     = errors.New("allocation not found")
)

// Machine-readable reason codes stored on allocations that end in manual
// review.
const (
	ReasonNoAvailableTrainers = "no_available_trainers"
	ReasonNoEligibleTrainers  = "no_eligible_trainers_after_checks"
)

// Per-trainer eligibility failure reasons, surfaced in upgrade warnings
// and availability responses.
const (
	reasonCapacityExhausted = "capacity_exhausted"
	reasonSlotConflict      = "slot_conflict"
	reasonTravelDistance    = "travel_distance_exceeded"
	reasonSlotClosed        = "slot_not_available"
)

// uniqueCommittedAllocationIndex backstops the one-committed-allocation
// rule at the database level.
const uniqueCommittedAllocationIndex = "uq_allocations_committed"

// isDuplicateCommit reports whether err is the unique violation raised
// when a concurrent approval committed an allocation for the same
// (student, course) pair first.
func isDuplicateCommit(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == uniqueCommittedAllocationIndex
}
