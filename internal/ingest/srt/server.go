package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/ttx/internal/ingest"
)

// readBufferSize is the read buffer for SRT socket reads: ten payloads of
// 7 transport packets.
const readBufferSize = 1316 * 10

// DefaultLatency is the SRT receiver latency used when none is configured.
const DefaultLatency = 120 * time.Millisecond

// Format is the demux format registered for SRT streams. Teletext over SRT
// always arrives in a transport stream.
const Format = "ts"

// Server accepts SRT publish connections carrying transport streams with
// teletext and registers them with the ingest registry.
type Server struct {
	log      *slog.Logger
	addr     string
	latency  time.Duration
	registry *ingest.Registry
}

// NewServer creates an SRT listener on addr. A zero latency selects
// DefaultLatency. If log is nil, slog.Default() is used.
func NewServer(addr string, latency time.Duration, registry *ingest.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if latency <= 0 {
		latency = DefaultLatency
	}
	return &Server{
		log:      log.With("component", "srt-server"),
		addr:     addr,
		latency:  latency,
		registry: registry,
	}
}

// Start accepts publish connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = s.latency

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr, "latency", s.latency)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if req.StreamID == "" {
			return srtgo.RejPeer
		}
		if _, busy := s.registry.Get(extractStreamKey(req.StreamID)); busy {
			s.log.Warn("rejecting publish for active key", "stream_id", req.StreamID)
			return srtgo.RejPeer
		}
		return 0
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		streamKey := extractStreamKey(conn.StreamID())
		s.log.Info("publish", "stream_key", streamKey, "remote", conn.RemoteAddr())

		go s.handleConnection(ctx, conn, streamKey)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn, streamKey string) {
	defer conn.Close()

	stream, writer, err := s.registry.Register(streamKey, ingest.OriginSRTListener, Format)
	if err != nil {
		s.log.Warn("publish rejected", "stream_key", streamKey, "error", err)
		return
	}
	stream.SetRemoteAddr(conn.RemoteAddr().String())

	copyConn(ctx, s.log, conn, stream, writer)

	stats := stream.IngestStats()
	s.registry.Unregister(streamKey)
	s.log.Info("connection closed", "stream_key", streamKey,
		"bytes", stats.BytesReceived, "reads", stats.ReadCount,
		"uptime_ms", stats.UptimeMs)
}

// copyConn moves bytes from an SRT connection into a stream's pipe until
// either side fails or ctx is done.
func copyConn(ctx context.Context, log *slog.Logger, conn io.Reader, stream *ingest.Stream, w io.Writer) {
	buf := make([]byte, readBufferSize)
	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("read error", "stream_key", stream.Key, "error", err)
			}
			return
		}
		stream.RecordRead(n)
		if _, err := w.Write(buf[:n]); err != nil {
			log.Debug("pipe write error", "stream_key", stream.Key, "error", err)
			return
		}
	}
}

// extractStreamKey maps an SRT stream ID such as "/live/bbc1" to its key.
func extractStreamKey(streamID string) string {
	streamID = strings.TrimPrefix(streamID, "/")
	streamID = strings.TrimPrefix(streamID, "live/")
	if streamID == "" {
		return "default"
	}
	return streamID
}
