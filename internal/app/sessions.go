package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/google/uuid"
)

// ControllerFactory builds a fresh controller for a new page view.
type ControllerFactory func() (*Controller, error)

type session struct {
	controller *Controller
	lastSeen   time.Time
}

// SessionRegistry keeps one Controller per page view and drops views that
// have been idle for longer than the TTL.
type SessionRegistry struct {
	newController ControllerFactory
	ttl           time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionRegistry(factory ControllerFactory, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		newController: factory,
		ttl:           ttl,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
}

// Open creates a session and performs its initial load. The session is only
// registered when the load succeeds.
func (r *SessionRegistry) Open(ctx context.Context) (string, Snapshot, error) {
	c, err := r.newController()
	if err != nil {
		return "", Snapshot{}, err
	}
	s, err := c.Load(ctx)
	if err != nil {
		return "", s, err
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &session{controller: c, lastSeen: r.now()}
	metrics.FeedSessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	slog.Info("Feed session opened", "session_id", id, "posts", len(s.Posts))
	return id, s, nil
}

// Get returns the controller of a live session and marks it as used.
func (r *SessionRegistry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.lastSeen = r.now()
	return s.controller, nil
}

// Close removes a session.
func (r *SessionRegistry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	metrics.FeedSessionsActive.Set(float64(len(r.sessions)))
	return nil
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many were removed.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	metrics.FeedSessionsActive.Set(float64(len(r.sessions)))
	return removed
}

// Start sweeps idle sessions until ctx is cancelled.
func (r *SessionRegistry) Start(ctx context.Context) {
	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	slog.Info("Starting feed session sweeper", "ttl", r.ttl, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Feed session sweeper stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("Expired feed sessions", "count", n)
			}
		}
	}
}
