package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	srt "github.com/zsiec/srtgo"

	"github.com/zsiec/ttx/internal/ingest"
)

// pushChunk is seven transport stream packets, one SRT payload.
const pushChunk = 7 * 188

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "send a file to an SRT listener, such as another ttxd",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:6000", Usage: "SRT listener address"},
			&cli.StringFlag{Name: "key", Usage: "stream key, the file name by default"},
			&cli.IntFlag{Name: "rate", Value: 1 << 20, Usage: "bytes per second"},
			&cli.BoolFlag{Name: "loop", Usage: "restart at the end of the file"},
		},
		Action: func(c *cli.Context) error {
			if _, err := loadConfig(c); err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("push: exactly one FILE is required", 2)
			}
			if c.Int("rate") <= 0 {
				return cli.Exit("push: rate must be positive", 2)
			}
			path := c.Args().First()
			data, err := os.ReadFile(path)
			if err != nil {
				return cli.Exit(err, 1)
			}
			key := c.String("key")
			if key == "" {
				key = ingest.KeyForFile(path)
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			p := &pusher{
				addr:     c.String("addr"),
				streamID: "live/" + key,
				data:     data,
				rate:     c.Int("rate"),
				loop:     c.Bool("loop"),
				log:      slog.With("component", "push", "stream_id", "live/"+key),
			}
			if err := p.run(ctx); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

type pusher struct {
	addr     string
	streamID string
	data     []byte
	rate     int
	loop     bool
	log      *slog.Logger
}

// run connects and sends until the file is done, reconnecting after a
// lost connection when looping.
func (p *pusher) run(ctx context.Context) error {
	for {
		cfg := srt.DefaultConfig()
		cfg.StreamID = p.streamID

		conn, err := srt.Dial(p.addr, cfg)
		if err != nil {
			if !p.loop {
				return fmt.Errorf("srt connect %s: %w", p.addr, err)
			}
			p.log.Warn("srt connect failed, retrying", "addr", p.addr, "error", err)
		} else {
			p.log.Info("connected", "addr", p.addr, "bytes", len(p.data))
			err = p.send(ctx, conn)
			conn.Close()
			if err == nil || ctx.Err() != nil {
				return nil
			}
			if !p.loop {
				return err
			}
			p.log.Warn("connection lost, reconnecting", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

type chunkWriter interface {
	Write(b []byte) (int, error)
}

// send writes the file in chunks paced against a single clock so the rate
// stays even across loop boundaries.
func (p *pusher) send(ctx context.Context, w chunkWriter) error {
	start := time.Now()
	var sent int64
	for {
		for i := 0; i < len(p.data); i += pushChunk {
			if ctx.Err() != nil {
				return nil
			}
			end := min(i+pushChunk, len(p.data))
			if _, err := w.Write(p.data[i:end]); err != nil {
				return err
			}
			sent += int64(end - i)
			if d := paceDelay(sent, p.rate, time.Since(start)); d > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(d):
				}
			}
		}
		if !p.loop || len(p.data) == 0 {
			return nil
		}
	}
}

// paceDelay returns how long to wait so that sent bytes at rate bytes per
// second are not ahead of elapsed.
func paceDelay(sent int64, rate int, elapsed time.Duration) time.Duration {
	due := time.Duration(float64(sent) / float64(rate) * float64(time.Second))
	return due - elapsed
}
