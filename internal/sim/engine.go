package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
	"go.uber.org/zap"
)

// Engine is the host-facing surface: it loads topologies into sessions and
// addresses them by handle.
type Engine struct {
	mu       sync.RWMutex
	sessions map[Handle]*Session
	base     settings
}

// NewEngine applies opts as defaults for every session it creates.
func NewEngine(opts ...Option) *Engine {
	st := defaultSettings()
	for _, opt := range opts {
		opt(&st)
	}
	return &Engine{
		sessions: make(map[Handle]*Session),
		base:     st,
	}
}

// LoadTopology validates particles and springs and opens a session for them.
// opts override the engine defaults for this session only.
func (e *Engine) LoadTopology(particles []physics.Particle, springs []physics.Spring, opts ...Option) (Handle, error) {
	st := e.base.clone()
	for _, opt := range opts {
		opt(&st)
	}

	s, err := newSession(particles, springs, st)
	if err != nil {
		if st.metrics != nil {
			st.metrics.Rejected.WithLabelValues("topology").Inc()
		}
		st.logger.Debug("topology rejected", zap.Error(err))
		return Handle{}, err
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	if st.metrics != nil {
		st.metrics.Sessions.Inc()
		st.metrics.Particles.Add(float64(len(particles)))
	}
	return s.id, nil
}

func (e *Engine) Session(h Handle) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownSession, h)
	}
	return s, nil
}

func (e *Engine) Step(ctx context.Context, h Handle, elapsed float32, p dynamo.Params) error {
	s, err := e.Session(h)
	if err != nil {
		return err
	}
	return s.Step(ctx, elapsed, p)
}

func (e *Engine) ReadParticles(h Handle) ([]physics.Particle, error) {
	s, err := e.Session(h)
	if err != nil {
		return nil, err
	}
	return s.ReadParticles(), nil
}

// Close releases a session. Later calls with h fail with ErrUnknownSession.
func (e *Engine) Close(h Handle) error {
	e.mu.Lock()
	s, ok := e.sessions[h]
	delete(e.sessions, h)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownSession, h)
	}
	if s.metrics != nil {
		s.metrics.Sessions.Dec()
		s.metrics.Particles.Sub(float64(s.Len()))
	}
	s.logger.Debug("session closed", zap.Stringer("session", h), zap.Int("frames", s.Frame()))
	return nil
}

// Sessions lists open handles in a stable order.
func (e *Engine) Sessions() []Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Handle, 0, len(e.sessions))
	for h := range e.sessions {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
