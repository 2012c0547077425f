// Package stream tracks the lifecycle of the streams being decoded. Each
// stream owns a context that is cancelled when it is removed, which stops
// its pipeline.
package stream

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Stream is one decoded stream.
type Stream struct {
	Key       string
	Origin    string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled when the stream is removed.
func (s *Stream) Context() context.Context { return s.ctx }

// Done is closed when the stream is removed.
func (s *Stream) Done() <-chan struct{} { return s.ctx.Done() }

// Manager manages the lifecycle of active streams.
type Manager struct {
	log      *slog.Logger
	mu       sync.RWMutex
	streams  map[string]*Stream
	onChange func(n int)
}

// NewManager creates a stream manager. If log is nil, slog.Default() is
// used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:     log.With("component", "stream-manager"),
		streams: make(map[string]*Stream),
	}
}

// OnChange registers fn to be told the stream count after every Create
// and Remove.
func (m *Manager) OnChange(fn func(n int)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Create registers a stream whose context derives from parent. It returns
// false if a stream with this key already exists.
func (m *Manager) Create(parent context.Context, key, origin string) (*Stream, bool) {
	m.mu.Lock()
	if _, ok := m.streams[key]; ok {
		m.mu.Unlock()
		m.log.Warn("stream already exists, rejecting duplicate", "key", key)
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		Key:       key,
		Origin:    origin,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.streams[key] = s
	n, fn := len(m.streams), m.onChange
	m.mu.Unlock()

	m.log.Info("stream created", "key", key, "origin", origin)
	if fn != nil {
		fn(n)
	}
	return s, true
}

// Remove cancels and forgets a stream.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	s, ok := m.streams[key]
	if ok {
		delete(m.streams, key)
	}
	n, fn := len(m.streams), m.onChange
	m.mu.Unlock()

	if !ok {
		return
	}
	s.cancel()
	m.log.Info("stream removed", "key", key, "uptime", time.Since(s.StartedAt).Round(time.Millisecond))
	if fn != nil {
		fn(n)
	}
}

// Get returns the stream of key.
func (m *Manager) Get(key string) (*Stream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[key]
	return s, ok
}

// List returns all active streams ordered by key.
func (m *Manager) List() []*Stream {
	m.mu.RLock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.RUnlock()
	sort.Slice(streams, func(i, j int) bool { return streams[i].Key < streams[j].Key })
	return streams
}
