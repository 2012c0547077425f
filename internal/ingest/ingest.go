// Package ingest manages active ingest connections. Each one couples the
// bytes arriving from SRT or a replayed file with metadata, lifecycle
// signaling and dispatch to a stream pipeline.
package ingest

import (
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Origins of an ingest stream.
const (
	OriginSRTListener = "srt"
	OriginSRTCaller   = "srt-pull"
	OriginFile        = "file"
)

// ErrDuplicate is returned by Register when the key is already in use.
var ErrDuplicate = errors.New("ingest: stream key already registered")

// IngestStats captures connection-level metrics for an ingest stream.
type IngestStats struct {
	Origin        string `json:"origin"`
	Format        string `json:"format"`
	BytesReceived int64  `json:"bytesReceived"`
	ReadCount     int64  `json:"readCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr"`
}

// Stream is an active ingest connection. Bytes written to its pipe by the
// receiver are read by the stream's demuxer.
type Stream struct {
	Key       string
	Origin    string
	Format    string
	StartedAt time.Time
	input     io.ReadCloser
	pw        *io.PipeWriter
	done      chan struct{}

	bytesReceived atomic.Int64
	readCount     atomic.Int64
	remoteAddr    atomic.Value
}

// RecordRead increments the byte and read counters.
func (s *Stream) RecordRead(n int) {
	s.bytesReceived.Add(int64(n))
	s.readCount.Add(1)
}

// SetRemoteAddr stores the peer address (or file path) for diagnostics.
func (s *Stream) SetRemoteAddr(addr string) {
	s.remoteAddr.Store(addr)
}

// Done is closed when the stream is unregistered.
func (s *Stream) Done() <-chan struct{} { return s.done }

// IngestStats returns a snapshot of the connection metrics.
func (s *Stream) IngestStats() IngestStats {
	addr, _ := s.remoteAddr.Load().(string)
	return IngestStats{
		Origin:        s.Origin,
		Format:        s.Format,
		BytesReceived: s.bytesReceived.Load(),
		ReadCount:     s.readCount.Load(),
		ConnectedAt:   s.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(s.StartedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}

// Handler is started in its own goroutine for every registered stream.
// format is one of the demux.Format names.
type Handler func(key string, input io.Reader, format string)

// Registry tracks active ingest streams by key and hands each new stream
// to the handler that builds its pipeline.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	onStream Handler
}

// NewRegistry creates a Registry. onStream may be nil.
func NewRegistry(onStream Handler) *Registry {
	return &Registry{
		streams:  make(map[string]*Stream),
		onStream: onStream,
	}
}

// Register creates an ingest stream and returns the writer its receiver
// should copy into. A key can only be registered once at a time.
func (r *Registry) Register(key, origin, format string) (*Stream, io.Writer, error) {
	pr, pw := io.Pipe()
	stream := &Stream{
		Key:       key,
		Origin:    origin,
		Format:    format,
		StartedAt: time.Now(),
		input:     pr,
		pw:        pw,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if _, ok := r.streams[key]; ok {
		r.mu.Unlock()
		return nil, nil, ErrDuplicate
	}
	r.streams[key] = stream
	r.mu.Unlock()

	if r.onStream != nil {
		go r.onStream(key, pr, format)
	}
	return stream, pw, nil
}

// Unregister removes a stream by key, closing its pipe so the reader sees
// EOF, and signals Done.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	stream, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()

	if ok {
		stream.pw.Close()
		close(stream.done)
	}
}

// Abort is Unregister with an error delivered to the reader instead of EOF.
func (r *Registry) Abort(key string, err error) {
	r.mu.RLock()
	stream, ok := r.streams[key]
	r.mu.RUnlock()
	if ok {
		stream.pw.CloseWithError(err)
	}
	r.Unregister(key)
}

// Get returns the Stream for key.
func (r *Registry) Get(key string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	return s, ok
}

// List returns the active streams ordered by key.
func (r *Registry) List() []*Stream {
	r.mu.RLock()
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
