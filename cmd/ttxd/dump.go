package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/zsiec/ccx"

	"github.com/zsiec/ttx/internal/config"
	"github.com/zsiec/ttx/internal/demux"
	"github.com/zsiec/ttx/internal/distribution"
	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/ingest"
	"github.com/zsiec/ttx/internal/pipeline"
	"github.com/zsiec/ttx/internal/vt"
)

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Value: demux.FormatAuto,
			Usage: "input format: auto, ts, m2ts or t42",
		},
		&cli.IntFlag{
			Name:  "region",
			Value: -1,
			Usage: "default character set region, -1 for the configured one",
		},
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "decode a file and print a page",
		ArgsUsage: "FILE",
		Flags: append(inputFlags(),
			&cli.StringFlag{Name: "page", Aliases: []string{"p"}, Value: "100", Usage: "page number in hex"},
			&cli.StringFlag{Name: "subpage", Aliases: []string{"s"}, Usage: "subpage number in hex, latest when unset"},
			&cli.StringFlag{Name: "level", Usage: "presentation level: 1, 1.5, 2.5 or 3.5"},
			&cli.IntFlag{Name: "rows", Usage: "rows to format, 1-25"},
			&cli.BoolFlag{Name: "nav", Usage: "print the navigation links"},
			&cli.BoolFlag{Name: "reveal", Usage: "show concealed text"},
			&cli.BoolFlag{Name: "all", Usage: "print every cached page"},
			&cli.BoolFlag{Name: "list", Aliases: []string{"l"}, Usage: "list cached pages and subpages"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON"},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("dump: exactly one FILE is required", 2)
			}
			opts, err := dumpOptions(c, cfg)
			if err != nil {
				return cli.Exit(err, 2)
			}

			p, err := decodeFile(c.Context, c.Args().First(), c, cfg, discard{})
			if err != nil {
				return cli.Exit(err, 1)
			}

			out := c.App.Writer
			switch {
			case c.Bool("list"):
				return writeList(out, p.Pages(), c.Bool("json"))
			case c.Bool("all"):
				for _, info := range p.Pages() {
					pgno, _ := vt.ParsePage(info.Page)
					if err := writePage(out, p, pgno, vt.AnySubno, opts, c); err != nil {
						return cli.Exit(err, 1)
					}
				}
				return nil
			}

			pgno, err := vt.ParsePage(c.String("page"))
			if err != nil {
				return cli.Exit(err, 2)
			}
			subno := vt.AnySubno
			if s := c.String("subpage"); s != "" {
				n, err := strconv.ParseUint(s, 16, 16)
				if err != nil {
					return cli.Exit(fmt.Errorf("bad subpage %q", s), 2)
				}
				subno = int(n)
			}
			if err := writePage(out, p, pgno, subno, opts, c); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

func dumpOptions(c *cli.Context, cfg *config.Config) (format.Options, error) {
	opts := cfg.FormatOptions()
	if s := c.String("level"); s != "" {
		level, err := vt.ParseLevel(s)
		if err != nil {
			return opts, err
		}
		opts.Level = level
	}
	if c.IsSet("rows") {
		opts.Rows = c.Int("rows")
	}
	if c.IsSet("nav") {
		opts.Navigation = c.Bool("nav")
	}
	return opts, nil
}

// decodeFile runs path through a pipeline to EOF and returns it for
// querying.
func decodeFile(ctx context.Context, path string, c *cli.Context, cfg *config.Config, b pipeline.Broadcaster) (*pipeline.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	log := slog.With("file", path)
	src, err := demux.NewSource(f, c.String("format"), log, nil)
	if err != nil {
		return nil, err
	}
	region := cfg.Decoder.Region
	if r := c.Int("region"); r >= 0 {
		region = r
	}
	subPages, err := cfg.SubtitlePages()
	if err != nil {
		return nil, err
	}

	p := pipeline.New(ingest.KeyForFile(path), src, b, pipeline.Options{
		Region:        region,
		Subtitle:      cfg.SubtitleOptions(),
		SubtitlePages: subPages,
	})
	p.SetProtocol(ingest.OriginFile)
	start := time.Now()
	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	snap := p.StreamSnapshot()
	log.Debug("decoded", "packets", snap.Packets, "pages", snap.CachedPages, "elapsed", time.Since(start))
	return p, nil
}

type dumpedPage struct {
	Page     string   `json:"page"`
	Subpage  int      `json:"subpage"`
	Level    vt.Level `json:"level"`
	Degraded bool     `json:"degraded,omitempty"`
	Lines    []string `json:"lines"`
	NavLinks []string `json:"navLinks,omitempty"`
}

func writePage(w io.Writer, p *pipeline.Pipeline, pgno, subno int, opts format.Options, c *cli.Context) error {
	pg, err := p.Format(pgno, subno, opts)
	if err != nil {
		return fmt.Errorf("page %s: %w", vt.FormatPage(pgno), err)
	}
	reveal := c.Bool("reveal")
	d := dumpedPage{
		Page:     vt.FormatPage(pg.Pgno),
		Subpage:  pg.Subno,
		Level:    pg.Level,
		Degraded: pg.Degraded,
		Lines:    pg.Lines(reveal),
	}
	if opts.Navigation {
		for _, l := range pg.NavLink {
			if l.Valid() {
				d.NavLinks = append(d.NavLinks, vt.FormatPage(l.Pgno))
			}
		}
	}
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Fprintf(w, "--- %s/%04X ---\n", d.Page, d.Subpage)
	for _, line := range d.Lines {
		fmt.Fprintln(w, line)
	}
	if len(d.NavLinks) > 0 {
		fmt.Fprintf(w, "links: %s\n", strings.Join(d.NavLinks, " "))
	}
	return nil
}

func writeList(w io.Writer, pages []distribution.PageInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pages)
	}
	for _, info := range pages {
		subs := make([]string, len(info.Subpages))
		for i, s := range info.Subpages {
			subs[i] = fmt.Sprintf("%04X", s)
		}
		fmt.Fprintf(w, "%s %-12s %s\n", info.Page, info.Type, strings.Join(subs, " "))
	}
	return nil
}

type discard struct{}

func (discard) BroadcastCaptions(*ccx.CaptionFrame)   {}
func (discard) BroadcastPage(distribution.PageUpdate) {}
func (discard) ViewerCount() int                      { return 0 }
