package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a pre-flight quota check.
type Decision struct {
	Allowed         bool
	HourlyRemaining int
	DailyRemaining  int
	// EstimatedWait is how long until the blocking window resets.
	// Zero when Allowed.
	EstimatedWait time.Duration
}

// Tracker follows consumed audio-seconds against a remote provider's
// rolling hourly and daily quotas. Implementations are injected so a
// single-node deployment can run in memory while a worker fleet shares
// a Redis-backed view.
type Tracker interface {
	// CanProcess reports whether durationSeconds more of audio fits in
	// both windows right now.
	CanProcess(ctx context.Context, durationSeconds int) (Decision, error)

	// TrackUsage records audio-seconds actually submitted.
	TrackUsage(ctx context.Context, durationSeconds int) error

	// Reconcile overwrites the hourly counter with the provider's
	// authoritative used-seconds figure from a rate-limit error, and
	// schedules the window reset per its retry-after hint. Callers
	// pass retryAfter <= 0 when the hint was unparseable; a full hour
	// is assumed.
	Reconcile(ctx context.Context, usedSeconds int, retryAfter time.Duration) error
}

const defaultResetDelay = time.Hour

// MemoryTracker is the single-process Tracker. Windows reset lazily on
// the next check past their boundary; no background timer.
type MemoryTracker struct {
	mu sync.Mutex

	hourlyLimit int
	dailyLimit  int

	hourlyUsed    int
	dailyUsed     int
	hourlyResetAt time.Time
	dailyResetAt  time.Time

	now func() time.Time
}

func NewMemoryTracker(hourlyLimit, dailyLimit int) *MemoryTracker {
	t := &MemoryTracker{
		hourlyLimit: hourlyLimit,
		dailyLimit:  dailyLimit,
		now:         time.Now,
	}
	t.hourlyResetAt = t.now().Add(time.Hour)
	t.dailyResetAt = t.now().Add(24 * time.Hour)
	return t
}

func (t *MemoryTracker) rollWindows() {
	now := t.now()
	if !now.Before(t.hourlyResetAt) {
		t.hourlyUsed = 0
		t.hourlyResetAt = now.Add(time.Hour)
	}
	if !now.Before(t.dailyResetAt) {
		t.dailyUsed = 0
		t.dailyResetAt = now.Add(24 * time.Hour)
	}
}

func (t *MemoryTracker) CanProcess(_ context.Context, durationSeconds int) (Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollWindows()

	d := Decision{
		HourlyRemaining: t.hourlyLimit - t.hourlyUsed,
		DailyRemaining:  t.dailyLimit - t.dailyUsed,
	}

	if t.hourlyUsed+durationSeconds > t.hourlyLimit {
		d.EstimatedWait = t.hourlyResetAt.Sub(t.now())
		return d, nil
	}
	if t.dailyUsed+durationSeconds > t.dailyLimit {
		d.EstimatedWait = t.dailyResetAt.Sub(t.now())
		return d, nil
	}

	d.Allowed = true
	return d, nil
}

func (t *MemoryTracker) TrackUsage(_ context.Context, durationSeconds int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollWindows()

	t.hourlyUsed += durationSeconds
	t.dailyUsed += durationSeconds
	return nil
}

func (t *MemoryTracker) Reconcile(_ context.Context, usedSeconds int, retryAfter time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = defaultResetDelay
	}

	t.hourlyUsed = usedSeconds
	t.hourlyResetAt = t.now().Add(retryAfter)
	if usedSeconds > t.dailyUsed {
		t.dailyUsed = usedSeconds
	}
	return nil
}
