package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestCanProcessWithinLimits(t *testing.T) {
	tracker := NewMemoryTracker(7200, 28800)
	ctx := context.Background()

	d, err := tracker.CanProcess(ctx, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Error("expected fresh tracker to allow")
	}
	if d.HourlyRemaining != 7200 {
		t.Errorf("expected hourly remaining 7200, got %d", d.HourlyRemaining)
	}
}

func TestHourlyLimitBlocks(t *testing.T) {
	tracker := NewMemoryTracker(1000, 10000)
	ctx := context.Background()

	if err := tracker.TrackUsage(ctx, 900); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	d, err := tracker.CanProcess(ctx, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Error("expected hourly limit to block")
	}
	if d.EstimatedWait <= 0 {
		t.Error("expected a positive estimated wait")
	}
	if d.HourlyRemaining != 100 {
		t.Errorf("expected hourly remaining 100, got %d", d.HourlyRemaining)
	}
}

func TestDailyLimitBlocks(t *testing.T) {
	tracker := NewMemoryTracker(10000, 1000)
	ctx := context.Background()

	if err := tracker.TrackUsage(ctx, 950); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	d, err := tracker.CanProcess(ctx, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Error("expected daily limit to block")
	}
}

func TestLazyWindowReset(t *testing.T) {
	tracker := NewMemoryTracker(1000, 10000)
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }
	tracker.hourlyResetAt = current.Add(time.Hour)
	tracker.dailyResetAt = current.Add(24 * time.Hour)

	if err := tracker.TrackUsage(ctx, 1000); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	d, _ := tracker.CanProcess(ctx, 1)
	if d.Allowed {
		t.Fatal("expected block at limit")
	}

	// Step past the hourly boundary: counter resets on the next check.
	current = current.Add(61 * time.Minute)
	d, _ = tracker.CanProcess(ctx, 1)
	if !d.Allowed {
		t.Error("expected hourly window to reset lazily")
	}
	if d.HourlyRemaining != 1000 {
		t.Errorf("expected full hourly quota after reset, got %d", d.HourlyRemaining)
	}
	// Daily counter survives the hourly reset.
	if d.DailyRemaining != 9000 {
		t.Errorf("expected daily remaining 9000, got %d", d.DailyRemaining)
	}
}

func TestReconcile(t *testing.T) {
	tracker := NewMemoryTracker(1000, 10000)
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	// Provider says 980 seconds used, retry in 10 minutes.
	if err := tracker.Reconcile(ctx, 980, 10*time.Minute); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	d, _ := tracker.CanProcess(ctx, 100)
	if d.Allowed {
		t.Error("expected block after reconcile")
	}
	if d.HourlyRemaining != 20 {
		t.Errorf("expected hourly remaining 20, got %d", d.HourlyRemaining)
	}
	if d.EstimatedWait != 10*time.Minute {
		t.Errorf("expected wait 10m, got %s", d.EstimatedWait)
	}
}

func TestReconcileDefaultsToFullHour(t *testing.T) {
	tracker := NewMemoryTracker(1000, 10000)
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	// Unparseable retry-after arrives as zero.
	if err := tracker.Reconcile(ctx, 1000, 0); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	d, _ := tracker.CanProcess(ctx, 1)
	if d.Allowed {
		t.Fatal("expected block")
	}
	if d.EstimatedWait != time.Hour {
		t.Errorf("expected default one-hour wait, got %s", d.EstimatedWait)
	}
}
