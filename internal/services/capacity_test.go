package services

import "testing"

func TestCapacityForRatingTiers(t *testing.T) {
	cases := []struct {
		name   string
		rating *float64
		want   int
	}{
		{"unrated", nil, 4},
		{"low", ptrFloat(2.8), 4},
		{"boundary three", ptrFloat(3.0), 4},
		{"mid", ptrFloat(3.5), 5},
		{"solid", ptrFloat(4.0), 6},
		{"strong", ptrFloat(4.5), 7},
		{"just under top", ptrFloat(4.59), 7},
		{"top", ptrFloat(4.6), 8},
		{"excellent", ptrFloat(4.95), 8},
	}
	for _, tc := range cases {
		if got := capacityForRating(tc.rating); got != tc.want {
			t.Errorf("%s: expected capacity %d, got %d", tc.name, tc.want, got)
		}
	}
}

func ptrFloat(v float64) *float64 { return &v }
