package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryVelocityCounterSlidingWindow(t *testing.T) {
	counter := NewMemoryVelocityCounter()
	ctx := context.Background()
	account := uuid.New()
	other := uuid.New()
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		got, err := counter.Hit(ctx, account, start.Add(time.Duration(i)*10*time.Second))
		if err != nil {
			t.Fatalf("hit: %v", err)
		}
		if got != i {
			t.Fatalf("expected count %d, got %d", i, got)
		}
	}

	if got, _ := counter.Hit(ctx, other, start); got != 1 {
		t.Fatalf("expected accounts to be counted separately, got %d", got)
	}

	// 70s after start the hit at +10s has left the window.
	got, err := counter.Hit(ctx, account, start.Add(70*time.Second))
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected 3 hits in the last minute, got %d", got)
	}

	if got, _ := counter.Hit(ctx, account, start.Add(5*time.Minute)); got != 1 {
		t.Fatalf("expected window to reset after idle period, got %d", got)
	}
}
