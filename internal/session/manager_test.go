package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizforge/attempt-engine/internal/engine"
)

func newManagerRig() (*Manager, *testRig) {
	rig := newTestRig()
	manager := NewManager(Config{
		Bank:      rig.bank,
		Ledger:    rig.ledger,
		Scorer:    rig.scorer,
		Snapshots: rig.snapshots,
		Publisher: rig.publisher,
		Timer:     rig.ctrl.timerOpts,
	})
	return manager, rig
}

func TestManagerOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("second open returns the live controller", func(t *testing.T) {
		manager, _ := newManagerRig()

		first, err := manager.Open(ctx, "quiz-1", "learner-1")
		require.NoError(t, err)
		second, err := manager.Open(ctx, "quiz-1", "learner-1")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, manager.Len())
		first.Close()
	})

	t.Run("concurrent opens share one controller and one ledger attempt", func(t *testing.T) {
		manager, rig := newManagerRig()
		rig.bank.delay = 20 * time.Millisecond

		const openers = 8
		ctrls := make([]*Controller, openers)
		var wg sync.WaitGroup
		for i := 0; i < openers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ctrl, err := manager.Open(ctx, "quiz-1", "learner-1")
				assert.NoError(t, err)
				ctrls[i] = ctrl
			}(i)
		}
		wg.Wait()

		for i := 1; i < openers; i++ {
			assert.Same(t, ctrls[0], ctrls[i])
		}
		assert.Equal(t, 1, rig.ledger.startCalls)
		assert.Equal(t, 1, manager.Len())
		manager.Close("quiz-1", "learner-1")
	})

	t.Run("failed open registers nothing", func(t *testing.T) {
		manager, rig := newManagerRig()
		rig.ledger.startErr = engine.ErrMaxAttemptsExceeded

		_, err := manager.Open(ctx, "quiz-1", "learner-1")
		require.ErrorIs(t, err, engine.ErrMaxAttemptsExceeded)
		assert.Equal(t, 0, manager.Len())

		_, err = manager.Get("quiz-1", "learner-1")
		assert.ErrorIs(t, err, engine.ErrSessionNotActive)
	})

	t.Run("open after submission builds a fresh controller", func(t *testing.T) {
		manager, rig := newManagerRig()
		rig.ledger.getState = &engine.LedgerState{AttemptID: "attempt-2", RemainingSeconds: 1800}

		first, err := manager.Open(ctx, "quiz-1", "learner-1")
		require.NoError(t, err)
		rig.answerAllOn(t, first)
		_, err = first.Submit(ctx, false)
		require.NoError(t, err)

		rig.ledger.getErr = nil
		second, err := manager.Open(ctx, "quiz-1", "learner-1")
		require.NoError(t, err)

		assert.NotSame(t, first, second)
		assert.Equal(t, 1, manager.Len())
		second.Close()
	})
}
