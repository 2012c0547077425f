package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zsiec/ccx"
	"github.com/zsiec/ttx/internal/demux"
	"github.com/zsiec/ttx/internal/distribution"
	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/ttxtest"
	"github.com/zsiec/ttx/internal/vt"
)

type sliceSource struct {
	packets [][]byte
	desync  map[int]bool
	out     chan *demux.Packet
	err     error
}

func newSliceSource(packets [][]byte) *sliceSource {
	return &sliceSource{packets: packets, out: make(chan *demux.Packet)}
}

func (s *sliceSource) Packets() <-chan *demux.Packet { return s.out }

func (s *sliceSource) Run(ctx context.Context) error {
	defer close(s.out)
	for i, b := range s.packets {
		p := &demux.Packet{PTS: int64(i) * 1000, Desync: s.desync[i]}
		copy(p.Line.Data[:], b)
		select {
		case s.out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

type recorder struct {
	mu       sync.Mutex
	captions []*ccx.CaptionFrame
	pages    []distribution.PageUpdate
}

func (r *recorder) BroadcastCaptions(f *ccx.CaptionFrame) {
	r.mu.Lock()
	r.captions = append(r.captions, f)
	r.mu.Unlock()
}

func (r *recorder) BroadcastPage(ev distribution.PageUpdate) {
	r.mu.Lock()
	r.pages = append(r.pages, ev)
	r.mu.Unlock()
}

func (r *recorder) ViewerCount() int { return 0 }

func run(t *testing.T, p *Pipeline) {
	t.Helper()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPipeline_Subtitles(t *testing.T) {
	t.Parallel()

	packets := ttxtest.Concat(
		ttxtest.Subtitle(0x888, "Hello there"),
		ttxtest.Subtitle(0x888, "Hello there"),
		ttxtest.Subtitle(0x888, "General Kenobi"),
		ttxtest.Subtitle(0x888, ""),
	)
	rec := &recorder{}
	p := New("s1", newSliceSource(packets), rec, Options{})
	run(t, p)

	var texts []string
	for _, f := range rec.captions {
		texts = append(texts, f.Text)
		if f.Channel != 888 {
			t.Errorf("channel = %d, want 888", f.Channel)
		}
	}
	want := []string{"Hello there", "General Kenobi", ""}
	if len(texts) != len(want) {
		t.Fatalf("captions = %q, want %q", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("caption %d = %q, want %q", i, texts[i], want[i])
		}
	}
	if rec.captions[0].PTS != 2000 {
		t.Errorf("first caption PTS = %d, want 2000 (time filler)", rec.captions[0].PTS)
	}

	if len(rec.pages) != 4 || !rec.pages[0].Subtitle || rec.pages[0].Page != "888" {
		t.Errorf("page updates = %+v", rec.pages)
	}
}

func TestPipeline_ConfiguredSubtitlePage(t *testing.T) {
	t.Parallel()

	packets := ttxtest.Page(0x150, vt.FlagErase, "", ttxtest.StartBox+"boxed"+ttxtest.EndBox)
	rec := &recorder{}
	run(t, New("s1", newSliceSource(packets), rec, Options{SubtitlePages: []int{0x150}}))

	if len(rec.captions) != 1 || rec.captions[0].Text != "boxed" || rec.captions[0].Channel != 150 {
		t.Fatalf("captions = %+v", rec.captions)
	}
}

func TestPipeline_NormalPage(t *testing.T) {
	t.Parallel()

	packets := ttxtest.Page(0x100, vt.FlagErase, "Headlines")
	rec := &recorder{}
	p := New("s1", newSliceSource(packets), rec, Options{})
	run(t, p)

	if len(rec.captions) != 0 {
		t.Errorf("normal page produced captions: %+v", rec.captions)
	}
	if len(rec.pages) != 1 || rec.pages[0].Subtitle || rec.pages[0].Function != "lop" {
		t.Errorf("page updates = %+v", rec.pages)
	}

	pg, err := p.Format(0x100, vt.AnySubno, format.Options{Level: vt.Level1})
	if err != nil {
		t.Fatal(err)
	}
	if got := pg.Lines(false)[1]; got != "Headlines" {
		t.Errorf("row 1 = %q", got)
	}

	pages := p.Pages()
	if len(pages) != 1 || pages[0].Page != "100" || len(pages[0].Subpages) != 1 {
		t.Errorf("pages = %+v", pages)
	}
	snap := p.StreamSnapshot()
	if snap.Packets != int64(len(packets)) || snap.CachedPages != 1 || snap.PageUpdates != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPipeline_Desync(t *testing.T) {
	t.Parallel()

	// The desync lands between the header and the row, so the page in
	// progress is dropped.
	packets := ttxtest.Page(0x100, vt.FlagErase, "lost")
	src := newSliceSource(packets)
	src.desync = map[int]bool{1: true}
	rec := &recorder{}
	p := New("s1", src, rec, Options{})
	run(t, p)

	if _, err := p.Format(0x100, vt.AnySubno, format.Options{}); !errors.Is(err, format.ErrNotCached) {
		t.Errorf("err = %v, want ErrNotCached", err)
	}
	if p.StreamSnapshot().Desyncs != 1 {
		t.Error("desync not counted")
	}
}

func TestPipeline_SourceError(t *testing.T) {
	t.Parallel()

	src := newSliceSource(nil)
	src.err = errors.New("boom")
	if err := New("s1", src, &recorder{}, Options{}).Run(context.Background()); err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestPipeline_Cancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := newSliceSource(ttxtest.Page(0x100, 0, "x"))
	if err := New("s1", src, &recorder{}, Options{}).Run(ctx); err != nil {
		t.Errorf("Run after cancel = %v", err)
	}
}

func TestPipeline_T42Source(t *testing.T) {
	t.Parallel()

	data := ttxtest.T42(ttxtest.Subtitle(0x801, "from file"))
	src, err := demux.NewSource(bytes.NewReader(data), demux.FormatT42, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	run(t, New("file", src, rec, Options{}))
	if len(rec.captions) != 1 || rec.captions[0].Text != "from file" || rec.captions[0].Channel != 801 {
		t.Errorf("captions = %+v", rec.captions)
	}
}

func TestSubtitleText(t *testing.T) {
	t.Parallel()

	pg := &format.Page{Height: format.Rows}
	for r := range pg.Cells {
		for c := range pg.Cells[r] {
			pg.Cells[r][c] = format.Cell{Unicode: ' ', Opacity: format.TransparentSpace}
		}
	}
	put := func(r, c int, s string) {
		for i, ch := range s {
			pg.Cells[r][c+i] = format.Cell{Unicode: ch, Opacity: format.SemiTransparent}
		}
	}
	put(0, 0, "header")
	put(20, 5, " Two  words ")
	put(22, 0, "Line")
	pg.Cells[22][10] = format.Cell{Unicode: 'x', Opacity: format.TransparentSpace}

	if got := SubtitleText(pg); got != "Two words\nLine" {
		t.Errorf("text = %q", got)
	}
}
