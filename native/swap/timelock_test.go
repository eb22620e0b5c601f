package swap

import (
	"errors"
	"testing"
	"time"
)

func TestComputeExpirySubHour(t *testing.T) {
	now := int64(1_700_000_000)
	expiry, err := ComputeExpiry(now, time.Duration(0.001*float64(time.Hour)))
	if err != nil {
		t.Fatalf("compute expiry: %v", err)
	}
	if got := expiry - now; got != 3 {
		t.Fatalf("expected 3s timelock for 0.001h, got %ds", got)
	}
}

func TestComputeExpiryRejectsNonPositive(t *testing.T) {
	if _, err := ComputeExpiry(0, 0); !errors.Is(err, ErrInvalidTimelock) {
		t.Fatalf("expected ErrInvalidTimelock, got %v", err)
	}
	if _, err := ComputeExpiry(0, -time.Hour); !errors.Is(err, ErrInvalidTimelock) {
		t.Fatalf("expected ErrInvalidTimelock for negative duration, got %v", err)
	}
}

func TestComputeExpiryMinimumOneSecond(t *testing.T) {
	now := int64(100)
	expiry, err := ComputeExpiry(now, time.Millisecond)
	if err != nil {
		t.Fatalf("compute expiry: %v", err)
	}
	if expiry != now+1 {
		t.Fatalf("expected 1s floor, got %d", expiry-now)
	}
}

func TestClassifyTimelockPhases(t *testing.T) {
	expiry := int64(1_000)
	grace := 30 * time.Second
	cases := []struct {
		name string
		now  int64
		want TimelockPhase
	}{
		{"before expiry", 999, PhaseLive},
		{"at expiry", 1_000, PhaseGrace},
		{"inside grace", 1_029, PhaseGrace},
		{"grace boundary", 1_030, PhaseExpired},
		{"well past", 2_000, PhaseExpired},
	}
	for _, tc := range cases {
		if got := ClassifyTimelock(tc.now, expiry, grace); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestClassifyTimelockZeroGrace(t *testing.T) {
	if got := ClassifyTimelock(1_000, 1_000, 0); got != PhaseExpired {
		t.Fatalf("expected immediate expiry with zero grace, got %s", got)
	}
}
