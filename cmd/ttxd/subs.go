package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/zsiec/ccx"

	"github.com/zsiec/ttx/internal/distribution"
)

func subsCommand() *cli.Command {
	return &cli.Command{
		Name:      "subs",
		Usage:     "decode a file and print its subtitles as they change",
		ArgsUsage: "FILE",
		Flags: append(inputFlags(),
			&cli.IntFlag{Name: "channel", Usage: "only print this subtitle page, as a decimal number"},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("subs: exactly one FILE is required", 2)
			}
			pr := &captionPrinter{w: c.App.Writer, channel: c.Int("channel")}
			if _, err := decodeFile(c.Context, c.Args().First(), c, cfg, pr); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

// captionPrinter writes every caption change as a timestamped block.
type captionPrinter struct {
	w       io.Writer
	channel int
}

func (p *captionPrinter) BroadcastCaptions(f *ccx.CaptionFrame) {
	if p.channel != 0 && f.Channel != p.channel {
		return
	}
	text := f.Text
	if text == "" {
		text = "(clear)"
	}
	fmt.Fprintf(p.w, "[%s] %d: %s\n", ptsString(f.PTS), f.Channel,
		strings.ReplaceAll(text, "\n", "\n    "))
}

func (*captionPrinter) BroadcastPage(distribution.PageUpdate) {}
func (*captionPrinter) ViewerCount() int                      { return 0 }

// ptsString renders a microsecond PTS as h:mm:ss.mmm.
func ptsString(pts int64) string {
	if pts < 0 {
		return "--:--:--.---"
	}
	d := time.Duration(pts) * time.Microsecond
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	ms := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}
