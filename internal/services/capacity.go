package services

// minUtilizationFloor is the load below which trainers are prioritized so
// every trainer reaches a minimum book of business.
const minUtilizationFloor = 4

// capacityForRating maps a trainer's rating average to the maximum number
// of simultaneous allocations they may hold. Unrated trainers get the
// lowest tier. Evaluated at assignment time only; an allocation granted
// under an older rating is not revoked.
func capacityForRating(rating *float64) int {
	switch {
	case rating == nil || *rating <= 3.0:
		return 4
	case *rating <= 3.5:
		return 5
	case *rating <= 4.0:
		return 6
	case *rating < 4.6:
		return 7
	default:
		return 8
	}
}
