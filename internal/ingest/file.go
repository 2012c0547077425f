package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fileChunk is the read size for replayed files: 7 transport packets or
// a little over 31 T42 packets.
const fileChunk = 1316

// FileOptions control Replay.
type FileOptions struct {
	// Key names the stream; the file's base name without extension when
	// empty.
	Key string
	// Format is passed to the stream handler. "auto" when empty.
	Format string
	// Rate limits replay to this many bytes per second; zero replays as
	// fast as the pipeline consumes.
	Rate int
	// Loop restarts the file at EOF until ctx is cancelled.
	Loop bool
}

// KeyForFile returns the default stream key of path.
func KeyForFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Replay registers path as an ingest stream and copies it into the
// registry until EOF or ctx is done.
func Replay(ctx context.Context, r *Registry, path string, opts FileOptions, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if opts.Key == "" {
		opts.Key = KeyForFile(path)
	}
	if opts.Format == "" {
		opts.Format = "auto"
	}
	log = log.With("component", "file-ingest", "stream_key", opts.Key)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	stream, w, err := r.Register(opts.Key, OriginFile, opts.Format)
	if err != nil {
		return fmt.Errorf("ingest: %s: %w", opts.Key, err)
	}
	stream.SetRemoteAddr(path)
	log.Info("replaying file", "path", path, "format", opts.Format, "loop", opts.Loop)

	err = copyFile(ctx, f, w, stream, opts)
	stats := stream.IngestStats()
	if err != nil && ctx.Err() == nil {
		r.Abort(opts.Key, err)
		return fmt.Errorf("ingest: replay %s: %w", path, err)
	}
	r.Unregister(opts.Key)
	log.Info("replay finished", "bytes", stats.BytesReceived, "uptime_ms", stats.UptimeMs)
	return nil
}

func copyFile(ctx context.Context, f *os.File, w io.Writer, stream *Stream, opts FileOptions) error {
	buf := make([]byte, fileChunk)
	var pace *time.Ticker
	if opts.Rate > 0 {
		interval := time.Duration(int64(time.Second) * fileChunk / int64(opts.Rate))
		pace = time.NewTicker(max(interval, time.Millisecond))
		defer pace.Stop()
	}
	pass := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := f.Read(buf)
		pass += n
		if n > 0 {
			stream.RecordRead(n)
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			if !opts.Loop || pass == 0 {
				return nil
			}
			pass = 0
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if pace != nil {
			select {
			case <-pace.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
