package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/ccx"

	"github.com/zsiec/ttx/internal/config"
	"github.com/zsiec/ttx/internal/distribution"
	"github.com/zsiec/ttx/internal/ttxtest"
	"github.com/zsiec/ttx/internal/vt"
)

func writeT42(t *testing.T, packets [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.t42")
	require.NoError(t, os.WriteFile(path, ttxtest.T42(packets), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run(append([]string{"ttxd"}, args...)))
	return out.String()
}

func TestDump(t *testing.T) {
	path := writeT42(t, ttxtest.Concat(
		ttxtest.Page(0x100, vt.FlagErase, "Index", "", "news 101"),
		ttxtest.Page(0x101, vt.FlagErase, "Weather"),
	))

	out := run(t, "dump", "--page", "101", "--format", "t42", path)
	assert.Contains(t, out, "--- 101/")
	assert.Contains(t, out, "Weather")
	assert.NotContains(t, out, "Index")

	out = run(t, "dump", "--all", path)
	assert.Contains(t, out, "Index")
	assert.Contains(t, out, "Weather")
	assert.Less(t, strings.Index(out, "--- 100/"), strings.Index(out, "--- 101/"))
}

func TestDumpJSON(t *testing.T) {
	path := writeT42(t, ttxtest.Page(0x100, vt.FlagErase, "Index"))

	var pg dumpedPage
	require.NoError(t, json.Unmarshal([]byte(run(t, "dump", "--json", "--level", "1", path)), &pg))
	assert.Equal(t, "100", pg.Page)
	assert.Equal(t, vt.Level1, pg.Level)
	require.Greater(t, len(pg.Lines), 1)
	assert.Equal(t, "Index", pg.Lines[1])
}

func TestDumpList(t *testing.T) {
	path := writeT42(t, ttxtest.Concat(
		ttxtest.Page(0x100, vt.FlagErase, "Index"),
		ttxtest.Page(0x200, vt.FlagErase, "Sport"),
	))

	lines := strings.Split(strings.TrimSpace(run(t, "dump", "--list", path)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "100 "))
	assert.True(t, strings.HasPrefix(lines[1], "200 "))
}

func TestSubs(t *testing.T) {
	path := writeT42(t, ttxtest.Concat(
		ttxtest.Subtitle(0x888, "Hello"),
		ttxtest.Subtitle(0x888, ""),
	))

	out := run(t, "subs", path)
	assert.Contains(t, out, "888: Hello")
	assert.Contains(t, out, "888: (clear)")

	out = run(t, "subs", "--channel", "777", path)
	assert.Empty(t, out)
}

func TestCaptionPrinterMultiline(t *testing.T) {
	var buf bytes.Buffer
	p := &captionPrinter{w: &buf}
	p.BroadcastCaptions(&ccx.CaptionFrame{PTS: 61_500_000, Text: "one\ntwo", Channel: 888})
	assert.Equal(t, "[0:01:01.500] 888: one\n    two\n", buf.String())
}

func TestPTSString(t *testing.T) {
	assert.Equal(t, "--:--:--.---", ptsString(-1))
	assert.Equal(t, "0:00:00.000", ptsString(0))
	assert.Equal(t, "1:02:03.004", ptsString(int64((time.Hour+2*time.Minute+3*time.Second+4*time.Millisecond)/time.Microsecond)))
}

func TestWriteList(t *testing.T) {
	pages := []distribution.PageInfo{{Page: "100", Subpages: []int{0, 1}, Type: "normal"}}

	var buf bytes.Buffer
	require.NoError(t, writeList(&buf, pages, false))
	assert.Equal(t, "100 normal       0000 0001\n", buf.String())

	buf.Reset()
	require.NoError(t, writeList(&buf, pages, true))
	assert.JSONEq(t, `[{"page":"100","subpages":[0,1],"type":"normal"}]`, buf.String())
}

func TestSetupLogging(t *testing.T) {
	defer func(l *slog.Logger) { slog.SetDefault(l) }(slog.Default())

	cfg := config.Default()
	cfg.Logging.Format = "json"
	var buf bytes.Buffer
	require.NoError(t, setupLogging(cfg, &buf))
	slog.Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.Logging.Format = "xml"
	assert.Error(t, setupLogging(cfg, &buf))
}

func TestPaceDelay(t *testing.T) {
	assert.Equal(t, time.Second, paceDelay(1000, 1000, 0))
	assert.Equal(t, 500*time.Millisecond, paceDelay(1000, 1000, 500*time.Millisecond))
	assert.LessOrEqual(t, paceDelay(1000, 1000, 2*time.Second), time.Duration(0))
}

type chunkRecorder struct {
	chunks [][]byte
	err    error
}

func (c *chunkRecorder) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.chunks = append(c.chunks, append([]byte(nil), b...))
	return len(b), nil
}

func TestPusherSend(t *testing.T) {
	data := bytes.Repeat([]byte{0x47}, 3*pushChunk+10)
	p := &pusher{data: data, rate: 1 << 30}

	var w chunkRecorder
	require.NoError(t, p.send(context.Background(), &w))
	require.Len(t, w.chunks, 4)
	assert.Len(t, w.chunks[3], 10)
	assert.Equal(t, data, bytes.Join(w.chunks, nil))

	boom := errors.New("boom")
	assert.ErrorIs(t, p.send(context.Background(), &chunkRecorder{err: boom}), boom)
}

func TestPusherSendLoopCancel(t *testing.T) {
	p := &pusher{data: make([]byte, pushChunk), rate: 1 << 30, loop: true}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var w countingWriter
	assert.NoError(t, p.send(ctx, &w))
	assert.Greater(t, w.n, 1)
}

type countingWriter struct{ n int }

func (c *countingWriter) Write(b []byte) (int, error) {
	c.n++
	return len(b), nil
}
