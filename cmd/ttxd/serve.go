package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ttx/internal/certs"
	"github.com/zsiec/ttx/internal/config"
	"github.com/zsiec/ttx/internal/demux"
	"github.com/zsiec/ttx/internal/distribution"
	"github.com/zsiec/ttx/internal/ingest"
	srtingest "github.com/zsiec/ttx/internal/ingest/srt"
	"github.com/zsiec/ttx/internal/metrics"
	"github.com/zsiec/ttx/internal/pipeline"
	"github.com/zsiec/ttx/internal/stream"
	"github.com/zsiec/ttx/internal/teletext"
)

var errStreamEnded = errors.New("stream pipeline ended")

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "ingest streams and serve their pages over HTTPS, HTTP/3 and websockets",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTPS listen address"},
			&cli.StringFlag{Name: "srt", Usage: "SRT listen address, empty to disable"},
			&cli.BoolFlag{Name: "loop", Usage: "replay files forever"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Server.Addr = c.String("addr")
			}
			if c.IsSet("srt") {
				cfg.Ingest.SRTAddr = c.String("srt")
			}
			if c.Bool("loop") {
				cfg.Ingest.Loop = true
			}
			cfg.Ingest.Files = append(cfg.Ingest.Files, c.Args().Slice()...)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

type app struct {
	cfg       *config.Config
	mgr       *stream.Manager
	registry  *ingest.Registry
	srtCaller *srtingest.Caller
	distSrv   *distribution.Server
	metrics   *metrics.Metrics
}

func serve(ctx context.Context, cfg *config.Config) error {
	cert, err := certs.Resolve(cfg.Server.TLSCert, cfg.Server.TLSKey)
	if err != nil {
		return err
	}
	slog.Info("certificate ready",
		"self_signed", cert.SelfSigned,
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339),
	)

	a := &app{cfg: cfg, mgr: stream.NewManager(nil)}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		a.mgr.OnChange(a.metrics.SetStreams)
	}

	g, ctx := errgroup.WithContext(ctx)

	// The registry and caller are created after the errgroup so their
	// streams end with it.
	a.registry = ingest.NewRegistry(func(key string, input io.Reader, format string) {
		a.handleNewStream(ctx, key, input, format)
	})
	a.srtCaller = srtingest.NewCaller(a.registry, cfg.Ingest.SRTLatency, nil)

	srvCfg := distribution.ServerConfig{
		Addr:     cfg.Server.Addr,
		H3Addr:   cfg.Server.H3Addr,
		Cert:     cert,
		CORS:     cfg.Server.CORS,
		Defaults: cfg.FormatOptions(),
		SRTPull: func(address, streamKey, streamID string) error {
			return a.srtCaller.Pull(ctx, srtingest.PullRequest{
				Address:   address,
				StreamKey: streamKey,
				StreamID:  streamID,
			})
		},
		SRTStop:      a.srtCaller.Stop,
		SRTList:      a.listSRTPulls,
		IngestLookup: a.lookupIngest,
	}
	if a.metrics != nil {
		srvCfg.Metrics = a.metrics.Handler()
		srvCfg.MetricsPath = cfg.Metrics.Path
		srvCfg.ObserveFormat = a.metrics.ObserveFormat
	}
	if a.distSrv, err = distribution.NewServer(srvCfg); err != nil {
		return err
	}

	slog.Info("ttxd starting",
		"version", version,
		"api", cfg.Server.Addr,
		"h3", cfg.Server.H3Addr,
		"srt", cfg.Ingest.SRTAddr,
		"files", len(cfg.Ingest.Files),
		"level", cfg.Decoder.Level,
	)

	if cfg.Ingest.SRTAddr != "" {
		srtSrv := srtingest.NewServer(cfg.Ingest.SRTAddr, cfg.Ingest.SRTLatency, a.registry, nil)
		g.Go(func() error { return srtSrv.Start(ctx) })
	}
	for _, path := range cfg.Ingest.Files {
		g.Go(func() error {
			err := ingest.Replay(ctx, a.registry, path, ingest.FileOptions{
				Format: cfg.Ingest.Format,
				Rate:   cfg.Ingest.Rate,
				Loop:   cfg.Ingest.Loop,
			}, nil)
			if err != nil {
				// A bad file does not take the server down.
				slog.Error("file ingest failed", "path", path, "error", err)
			}
			return nil
		})
	}
	g.Go(func() error { return a.distSrv.Start(ctx) })

	return g.Wait()
}

func (a *app) listSRTPulls() []distribution.SRTPullInfo {
	pulls := a.srtCaller.ActivePulls()
	out := make([]distribution.SRTPullInfo, len(pulls))
	for i, p := range pulls {
		out[i] = distribution.SRTPullInfo{
			Address:   p.Address,
			StreamKey: p.StreamKey,
			StreamID:  p.StreamID,
		}
	}
	return out
}

func (a *app) lookupIngest(key string) *ingest.IngestStats {
	s, ok := a.registry.Get(key)
	if !ok {
		return nil
	}
	stats := s.IngestStats()
	return &stats
}

func (a *app) handleNewStream(ctx context.Context, key string, input io.Reader, format string) {
	origin := ingest.OriginSRTListener
	in, ok := a.registry.Get(key)
	if ok {
		origin = in.Origin
	}
	log := slog.With("stream", key)
	log.Info("new stream from ingest", "origin", origin, "format", format)

	st, created := a.mgr.Create(ctx, key, origin)
	if !created {
		log.Warn("rejecting duplicate stream")
		a.registry.Abort(key, errStreamEnded)
		return
	}
	defer a.teardownStream(key, in)

	var (
		observer teletext.Observer
		recorder demux.StatsRecorder
	)
	if a.metrics != nil {
		m := a.metrics.Stream(key)
		observer, recorder = m, m
	}

	src, err := demux.NewSource(input, format, log, recorder)
	if err != nil {
		log.Error("unsupported input", "error", err)
		return
	}
	subPages, _ := a.cfg.SubtitlePages()

	relay := a.distSrv.RegisterStream(key)
	p := pipeline.New(key, src, relay, pipeline.Options{
		Region:        a.cfg.Decoder.Region,
		Subtitle:      a.cfg.SubtitleOptions(),
		SubtitlePages: subPages,
		Observer:      observer,
	})
	p.SetProtocol(origin)
	a.distSrv.SetPipeline(key, p)

	if err := p.Run(st.Context()); err != nil {
		log.Error("pipeline error", "error", err)
	}
	snap := p.StreamSnapshot()
	log.Info("stream ended", "packets", snap.Packets, "pages", snap.CachedPages, "captions", snap.Captions)
}

// teardownStream releases everything a stream holds. The ingest side is
// aborted so a receiver blocked on the pipe returns, unless the key has
// since been registered again.
func (a *app) teardownStream(key string, in *ingest.Stream) {
	if cur, ok := a.registry.Get(key); ok && cur == in {
		a.registry.Abort(key, errStreamEnded)
	}
	a.distSrv.UnregisterStream(key)
	a.mgr.Remove(key)
	if a.metrics != nil {
		a.metrics.Remove(key)
	}
}
