package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/sorting"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/source"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/window"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/errors"
)

// Options configure sessions created by a Manager.
type Options struct {
	PageSize int
	Sorts    []sorting.Option
	Hooks    Hooks
	// OnCount is called with the live session count after every change.
	OnCount func(n int)
}

// Manager owns the live sessions and evicts idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      config.SessionConfig
	opts     Options
	now      func() time.Time
	logger   *slog.Logger
}

func NewManager(cfg config.SessionConfig, opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = window.DefaultPageSize
	}
	if len(opts.Sorts) == 0 {
		opts.Sorts = sorting.Defaults()
	}
	if opts.OnCount == nil {
		opts.OnCount = func(int) {}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		opts:     opts,
		now:      time.Now,
		logger:   slog.Default().With("component", "session-manager"),
	}
}

// Create opens a session on the category ref resolves to in c. A pageSize of
// zero uses the configured default.
func (m *Manager) Create(c *source.Catalog, ref string, pageSize int) (*Session, error) {
	if pageSize < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "pageSize must not be negative, got %d", pageSize)
	}
	if pageSize == 0 {
		pageSize = m.opts.PageSize
	}
	category, err := c.Category(ref)
	if err != nil {
		return nil, err
	}

	sorts := make([]sorting.Option, len(m.opts.Sorts))
	copy(sorts, m.opts.Sorts)
	s := newSession(uuid.NewString(), category, c.Listings(category.ID), c.Filters(category.ID), pageSize, sorts, m.opts.Hooks, m.now())

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit %d", apperrors.ErrTooManySessions, m.cfg.MaxSessions)
	}
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.opts.OnCount(n)
	m.logger.Debug("session created", "session_id", s.ID, "category", category.ID, "listings", c.Listings(category.ID).Len())
	return s, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}
	s.touch(m.now())
	return s, nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, id)
	}
	m.opts.OnCount(n)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.TTL)
	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if removed > 0 {
		m.opts.OnCount(n)
		m.logger.Info("idle sessions evicted", "removed", removed, "remaining", n)
	}
	return removed
}

// Run sweeps on every SweepInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
