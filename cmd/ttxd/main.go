package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/zsiec/ttx/internal/config"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("ttxd failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "ttxd"
	app.Usage = "Teletext decoder and page server"
	app.Version = version

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"TTX_CONFIG"},
			Usage:   "path to YAML configuration",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "log at debug level",
		},
	}
	app.Commands = []*cli.Command{
		serveCommand(),
		dumpCommand(),
		subsCommand(),
		pushCommand(),
	}
	return app
}

// loadConfig reads the configuration named by --config and installs the
// logger it describes.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err, 2)
	}
	if c.Bool("debug") {
		cfg.Logging.Level = "debug"
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		return nil, cli.Exit(err, 2)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, w io.Writer) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch cfg.Logging.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
