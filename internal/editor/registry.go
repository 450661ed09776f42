package editor

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-liquidacion/internal/obs"
)

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("editor: session not found")

// Registry keeps open editors by id and expires idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Editor
	idleTTL  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	cron     *cron.Cron
}

// NewRegistry builds a registry. A zero idleTTL disables expiry.
func NewRegistry(idleTTL time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Editor),
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Add registers e.
func (r *Registry) Add(e *Editor) {
	r.mu.Lock()
	r.sessions[e.ID()] = e
	n := len(r.sessions)
	r.mu.Unlock()
	r.gauge(n)
}

// Get returns the open editor with id. Closed editors are dropped.
func (r *Registry) Get(id string) (*Editor, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.Closed() {
		r.Remove(id)
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Remove closes and forgets the editor with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		e.Close()
		r.gauge(n)
	}
}

// Len returns the number of registered editors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes closed editors and those idle longer than the TTL. It
// returns how many were removed. Editors are inspected without the registry
// lock so a busy session cannot hold up lookups of the others.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.RLock()
	open := make(map[string]*Editor, len(r.sessions))
	for id, e := range r.sessions {
		open[id] = e
	}
	r.mu.RUnlock()

	var stale []string
	for id, e := range open {
		if e.expired(now, r.idleTTL) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	r.mu.Lock()
	expired := make([]*Editor, 0, len(stale))
	for _, id := range stale {
		if cur, ok := r.sessions[id]; ok && cur == open[id] {
			delete(r.sessions, id)
			expired = append(expired, cur)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, e := range expired {
		e.Close()
	}
	if len(expired) > 0 {
		r.gauge(n)
		r.logger.Info().Int("expired", len(expired)).Int("open", n).Msg("editor sessions swept")
	}
	return len(expired)
}

// StartSweeper runs Sweep on the cron schedule spec, e.g. "@every 1m".
func (r *Registry) StartSweeper(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { r.Sweep() }); err != nil {
		return err
	}
	c.Start()
	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	return nil
}

// Close stops the sweeper and closes every editor.
func (r *Registry) Close() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	sessions := r.sessions
	r.sessions = make(map[string]*Editor)
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, e := range sessions {
		e.Close()
	}
	r.gauge(0)
}

func (r *Registry) gauge(n int) {
	if obs.EditorSessions != nil {
		obs.EditorSessions.Set(float64(n))
	}
}
