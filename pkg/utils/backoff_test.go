package utils

import (
	"testing"
	"time"
)

func TestBackoffZeroAttempt(t *testing.T) {
	if d := Backoff(time.Second, 0); d != 0 {
		t.Errorf("attempt 0 should return 0, got %v", d)
	}
	if d := Backoff(time.Second, -1); d != 0 {
		t.Errorf("negative attempt should return 0, got %v", d)
	}
}

func TestBackoffGrows(t *testing.T) {
	base := 100 * time.Millisecond
	prev := time.Duration(0)
	for attempt := 1; attempt <= 4; attempt++ {
		d := Backoff(base, attempt)
		// Jitter is at most 25%, so successive attempts must not shrink below
		// 75% of the doubled previous floor.
		if d < prev {
			t.Errorf("attempt %d: backoff %v below previous %v", attempt, d, prev)
		}
		prev = d / 2
	}
}

func TestBackoffZeroBaseDelay(t *testing.T) {
	for attempt := 1; attempt <= 3; attempt++ {
		if d := Backoff(0, attempt); d != 0 {
			t.Errorf("zero base delay, attempt %d: got %v, want 0", attempt, d)
		}
	}
	if d := Backoff(time.Nanosecond, 1); d < 0 {
		t.Errorf("tiny base delay produced negative backoff %v", d)
	}
}

func TestBackoffCapped(t *testing.T) {
	d := Backoff(time.Second, 30)
	if d > maxBackoff+maxBackoff/4 {
		t.Errorf("backoff %v exceeds cap with jitter", d)
	}
}
