package backoff

import (
	"testing"
	"time"
)

func TestDelay_ExponentialGrowth(t *testing.T) {
	min := 100 * time.Millisecond
	max := 60 * time.Second

	for _, tc := range []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{9, 51200 * time.Millisecond},
	} {
		if got := Delay(tc.attempt, min, max, 2.0); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDelay_CapEnforcement(t *testing.T) {
	min := 5 * time.Second
	max := 60 * time.Second

	for attempt := 0; attempt < 200; attempt += 10 {
		if d := Delay(attempt, min, max, 2.0); d > max {
			t.Fatalf("attempt %d: got %v, want <= %v", attempt, d, max)
		}
	}
}

func TestDelay_OverflowGuard(t *testing.T) {
	// Large attempt counts overflow float64 exponentiation; the cap must hold.
	if d := Delay(10000, time.Second, time.Minute, 2.0); d != time.Minute {
		t.Fatalf("got %v, want %v", d, time.Minute)
	}
}
