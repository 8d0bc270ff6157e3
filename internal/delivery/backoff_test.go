package delivery

import (
	"testing"
	"time"
)

func TestDelayForLadder(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Minute},
		{1, 5 * time.Minute},
		{2, 15 * time.Minute},
		{3, 30 * time.Minute},
		{4, 30 * time.Minute},
		{10, 30 * time.Minute},
		{-1, 1 * time.Minute},
	}
	for _, tc := range cases {
		if got := DelayFor(tc.attempt); got != tc.want {
			t.Errorf("DelayFor(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
