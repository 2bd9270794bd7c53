// Package timer runs the per-attempt countdown and keeps it reconciled with
// the server-held attempt record. The local clock is advisory; the ledger is
// the authority.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quizforge/attempt-engine/internal/utils"
)

type State string

const (
	StateIdle    State = "Idle"
	StateRunning State = "Running"
	StateExpired State = "Expired"
	StateStopped State = "Stopped"
)

const (
	DefaultInterval       = time.Second
	DefaultReconcileEvery = 30 // Ticks between ledger reconciliations
)

var ErrAlreadyStarted = errors.New("timer already started")

// ReconcileFunc fetches the authoritative remaining time from the attempt
// ledger. A failing call is transient: it is absorbed and retried on the
// next reconciliation tick.
type ReconcileFunc func(ctx context.Context) (remainingSeconds int, isExpired bool, err error)

// Options tune the timer; zero values take the defaults. Tests shrink the
// interval instead of waiting wall-clock seconds.
type Options struct {
	Interval       time.Duration
	ReconcileEvery int
	Logger         utils.Logger
}

// Timer is an owned, disposable countdown scoped to one attempt session.
// It must be stopped on session teardown; after Stop no tick or
// reconciliation fires.
type Timer struct {
	mu        sync.Mutex
	state     State
	remaining int
	ticks     int

	interval       time.Duration
	reconcileEvery int
	reconcile      ReconcileFunc
	onExpire       func()
	logger         utils.Logger

	// Request timestamp of the last applied reconciliation response.
	// Responses arriving out of order are discarded against this.
	lastApplied time.Time

	cancel context.CancelFunc
}

// New builds an idle timer. reconcile may be nil for the local-only degraded
// mode; onExpire fires exactly once when the attempt runs out of time.
func New(reconcile ReconcileFunc, onExpire func(), opts Options) *Timer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ReconcileEvery <= 0 {
		opts.ReconcileEvery = DefaultReconcileEvery
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	return &Timer{
		state:          StateIdle,
		interval:       opts.Interval,
		reconcileEvery: opts.ReconcileEvery,
		reconcile:      reconcile,
		onExpire:       onExpire,
		logger:         opts.Logger.With("component", "attempt_timer"),
	}
}

// Start seeds the countdown and launches the tick loop. Seeding comes from
// the ledger on start/resume, or from time_limit*60 in degraded mode.
func (t *Timer) Start(seconds int) error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, t.state)
	}
	if seconds <= 0 {
		t.remaining = 0
		t.mu.Unlock()
		// Asynchronous so the expiry callback never runs under whatever
		// lock the caller holds while starting the session.
		go t.expire()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.state = StateRunning
	t.remaining = seconds
	t.mu.Unlock()

	t.logger.Info("Timer started", "remaining_seconds", seconds)
	go t.run(ctx)
	return nil
}

func (t *Timer) run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick decrements the countdown by one second and, every reconcileEvery
// ticks, kicks off an asynchronous ledger reconciliation so the network call
// never blocks the tick loop or interaction handling.
func (t *Timer) tick(ctx context.Context) {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}

	t.ticks++
	if t.remaining > 0 {
		t.remaining--
	}
	zero := t.remaining <= 0
	shouldReconcile := !zero && t.reconcile != nil && t.ticks%t.reconcileEvery == 0
	t.mu.Unlock()

	if zero {
		t.expire()
		return
	}
	if shouldReconcile {
		go t.reconcileOnce(ctx)
	}
}

// reconcileOnce re-fetches the authoritative remaining time. The request
// timestamp is taken before the call; a response is applied only when its
// request is newer than the last applied one, so reordered responses can
// never resurrect stale time.
func (t *Timer) reconcileOnce(ctx context.Context) {
	requestedAt := time.Now()

	remaining, expired, err := t.reconcile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Debug("Reconciliation tick failed, will retry", "error", err)
		}
		return
	}

	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	if !requestedAt.After(t.lastApplied) {
		t.mu.Unlock()
		t.logger.Debug("Discarding stale reconciliation response")
		return
	}
	t.lastApplied = requestedAt

	if expired {
		t.mu.Unlock()
		t.logger.Info("Ledger reports attempt expired, overriding local countdown")
		t.expire()
		return
	}
	if remaining >= 0 {
		t.remaining = remaining
	}
	t.mu.Unlock()
}

// expire transitions to Expired exactly once. Repeated zero-crossings and
// concurrent ledger expiries collapse into a single onExpire invocation.
func (t *Timer) expire() {
	t.mu.Lock()
	if t.state == StateExpired || t.state == StateStopped {
		t.mu.Unlock()
		return
	}
	t.state = StateExpired
	t.remaining = 0
	if t.cancel != nil {
		t.cancel()
	}
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Stop tears the timer down. No further ticks or reconciliation calls fire
// afterward; in-flight reconciliations are discarded when they land.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.state == StateExpired || t.state == StateStopped {
		t.mu.Unlock()
		return
	}
	t.state = StateStopped
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.logger.Debug("Timer stopped")
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the current local countdown value in seconds.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// FormatSeconds renders a countdown as MM:SS, or H:MM:SS past the hour.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
