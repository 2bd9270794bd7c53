package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/quizforge/attempt-engine/internal/engine"
	"github.com/quizforge/attempt-engine/internal/models"
)

// Manager keeps the live attempt sessions, one controller per learner and
// quiz. Controllers are owned and disposable; closing a session drops its
// timer and controller while the ledger record stays behind for resume.
type Manager struct {
	cfg Config

	// Concurrent opens for the same key collapse into one Start, so a
	// second controller (and its timer) can never be built for an attempt
	// that is already being opened.
	opening singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Controller
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Controller),
	}
}

func sessionKey(quizID, learnerID string) string {
	return quizID + "|" + learnerID
}

// Open starts or resumes the learner's attempt and registers the live
// session. Asking again while a session is live, or while another open for
// the same attempt is in flight, hands back the same controller instead of
// a second timer.
func (m *Manager) Open(ctx context.Context, quizID, learnerID string) (*Controller, error) {
	key := sessionKey(quizID, learnerID)

	v, err, _ := m.opening.Do(key, func() (interface{}, error) {
		m.mu.Lock()
		if ctrl, ok := m.sessions[key]; ok {
			if !ctrl.Session().State.Terminal() {
				m.mu.Unlock()
				return ctrl, nil
			}
			delete(m.sessions, key)
			m.mu.Unlock()
			ctrl.Close()
		} else {
			m.mu.Unlock()
		}

		ctrl := NewController(m.cfg)
		if err := ctrl.Start(ctx, quizID, learnerID); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sessions[key] = ctrl
		m.mu.Unlock()
		return ctrl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Controller), nil
}

// Get returns the learner's live session.
func (m *Manager) Get(quizID, learnerID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.sessions[sessionKey(quizID, learnerID)]
	if !ok {
		return nil, engine.ErrSessionNotActive
	}
	return ctrl, nil
}

// Close tears a live session down without submitting it. The ledger record
// survives, so the learner can resume later.
func (m *Manager) Close(quizID, learnerID string) {
	key := sessionKey(quizID, learnerID)

	m.mu.Lock()
	ctrl, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if ok {
		ctrl.Close()
	}
}

// Reap drops sessions that already reached their terminal state, returning
// how many were removed. The server runs this periodically so submitted
// attempts do not pin controllers forever.
func (m *Manager) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for key, ctrl := range m.sessions {
		if ctrl.Session().State == models.SessionSubmitted {
			ctrl.Close()
			delete(m.sessions, key)
			reaped++
		}
	}
	return reaped
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
