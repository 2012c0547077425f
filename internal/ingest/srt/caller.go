package srt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/ttx/internal/ingest"
)

// dialTimeout bounds the SRT handshake of a pull.
const dialTimeout = 10 * time.Second

// Pull errors.
var (
	ErrPullActive  = errors.New("srt: pull already active for stream key")
	ErrNoPull      = errors.New("srt: no active pull for stream key")
	ErrBadRequest  = errors.New("srt: address and streamKey are required")
	ErrDialTimeout = errors.New("srt: dial timed out")
)

// PullRequest describes a remote SRT source to pull from.
type PullRequest struct {
	Address   string `json:"address"`
	StreamKey string `json:"streamKey"`
	StreamID  string `json:"streamId,omitempty"`
}

type activePull struct {
	req    PullRequest
	cancel context.CancelFunc
}

// Caller dials remote SRT listeners and streams their data into the
// ingest registry.
type Caller struct {
	log      *slog.Logger
	latency  time.Duration
	registry *ingest.Registry

	mu    sync.Mutex
	pulls map[string]*activePull
}

// NewCaller creates a Caller registering pulled streams with registry.
func NewCaller(registry *ingest.Registry, latency time.Duration, log *slog.Logger) *Caller {
	if log == nil {
		log = slog.Default()
	}
	if latency <= 0 {
		latency = DefaultLatency
	}
	return &Caller{
		log:      log.With("component", "srt-caller"),
		latency:  latency,
		registry: registry,
		pulls:    make(map[string]*activePull),
	}
}

// Pull dials the remote listener and, once connected, streams it in the
// background until Stop or ctx cancellation.
func (c *Caller) Pull(ctx context.Context, req PullRequest) error {
	if req.Address == "" || req.StreamKey == "" {
		return ErrBadRequest
	}
	if c.active(req.StreamKey) {
		return fmt.Errorf("%w %q", ErrPullActive, req.StreamKey)
	}

	c.log.Info("dialing", "address", req.Address, "stream_key", req.StreamKey)

	cfg := srtgo.DefaultConfig()
	cfg.Latency = c.latency
	cfg.StreamID = req.StreamID
	if cfg.StreamID == "" {
		cfg.StreamID = "live/" + req.StreamKey
	}

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(req.Address, cfg)
		ch <- dialResult{conn, err}
	}()
	drain := func() {
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
	}

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("SRT dial failed: %w", res.err)
		}
		return c.startStreaming(ctx, req, res.conn)
	case <-timer.C:
		drain()
		return fmt.Errorf("%w after %s", ErrDialTimeout, dialTimeout)
	case <-ctx.Done():
		drain()
		return ctx.Err()
	}
}

func (c *Caller) active(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pulls[key]
	return ok
}

func (c *Caller) startStreaming(ctx context.Context, req PullRequest, conn *srtgo.Conn) error {
	stream, writer, err := c.registry.Register(req.StreamKey, ingest.OriginSRTCaller, Format)
	if err != nil {
		conn.Close()
		return fmt.Errorf("srt: %s: %w", req.StreamKey, err)
	}
	stream.SetRemoteAddr(req.Address)

	pullCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.pulls[req.StreamKey] = &activePull{req: req, cancel: cancel}
	c.mu.Unlock()

	c.log.Info("connected", "address", req.Address, "stream_key", req.StreamKey)

	go func() {
		defer func() {
			cancel()
			conn.Close()
			stats := stream.IngestStats()
			c.registry.Unregister(req.StreamKey)
			c.mu.Lock()
			delete(c.pulls, req.StreamKey)
			c.mu.Unlock()
			c.log.Info("pull ended", "stream_key", req.StreamKey,
				"bytes", stats.BytesReceived, "reads", stats.ReadCount,
				"uptime_ms", stats.UptimeMs)
		}()
		// The read blocks; closing the connection on cancel unblocks it.
		go func() {
			<-pullCtx.Done()
			conn.Close()
		}()
		copyConn(pullCtx, c.log, conn, stream, writer)
	}()
	return nil
}

// Stop ends the pull of streamKey.
func (c *Caller) Stop(streamKey string) error {
	c.mu.Lock()
	ap, ok := c.pulls[streamKey]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrNoPull, streamKey)
	}
	ap.cancel()
	return nil
}

// ActivePulls lists the running pulls ordered by stream key.
func (c *Caller) ActivePulls() []PullRequest {
	c.mu.Lock()
	out := make([]PullRequest, 0, len(c.pulls))
	for _, ap := range c.pulls {
		out = append(out, ap.req)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StreamKey < out[j].StreamKey })
	return out
}
