package domain

import (
	"testing"
	"time"
)

func TestDividendAmount(t *testing.T) {
	cases := []struct {
		name       string
		shareValue int64
		rate       float64
		want       int64
	}{
		{"whole cents", 100000, 4.0, 4000},
		{"rounds down to whole cents", 33333, 3.0, 999},
		{"zero rate pays nothing", 100000, 0, 0},
		{"zero basis pays nothing", 0, 4.0, 0},
		{"negative basis pays nothing", -500, 4.0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DividendAmount(tc.shareValue, tc.rate); got != tc.want {
				t.Errorf("DividendAmount(%d, %v) = %d, want %d", tc.shareValue, tc.rate, got, tc.want)
			}
		})
	}
}

func TestLoanEarliestTermination(t *testing.T) {
	loan := SubordinatedLoan{NoticePeriodMonths: 24}
	notice := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	got := loan.EarliestTermination(notice)
	want := time.Date(2028, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("EarliestTermination = %v, want %v", got, want)
	}
}
