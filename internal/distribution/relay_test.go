package distribution

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zsiec/ccx"
)

// mockViewer implements the Viewer interface for testing.
type mockViewer struct {
	id       string
	mu       sync.Mutex
	captions []*ccx.CaptionFrame
	pages    []PageUpdate

	captionSent atomic.Int64
	pageSent    atomic.Int64
}

func newMockViewer(id string) *mockViewer {
	return &mockViewer{id: id}
}

func (m *mockViewer) ID() string { return m.id }

func (m *mockViewer) SendCaptions(frame *ccx.CaptionFrame) {
	m.mu.Lock()
	m.captions = append(m.captions, frame)
	m.mu.Unlock()
	m.captionSent.Add(1)
}

func (m *mockViewer) SendPage(ev PageUpdate) {
	m.mu.Lock()
	m.pages = append(m.pages, ev)
	m.mu.Unlock()
	m.pageSent.Add(1)
}

func (m *mockViewer) Stats() ViewerStats {
	return ViewerStats{
		ID:       m.id,
		Captions: m.captionSent.Load(),
		Pages:    m.pageSent.Load(),
	}
}

func (m *mockViewer) captionTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.captions))
	for i, f := range m.captions {
		out[i] = f.Text
	}
	return out
}

func TestRelayAddRemoveViewer(t *testing.T) {
	t.Parallel()

	r := NewRelay()
	v := newMockViewer("v1")

	r.AddViewer(v)
	if r.ViewerCount() != 1 {
		t.Fatalf("ViewerCount = %d, want 1", r.ViewerCount())
	}
	r.RemoveViewer("v1")
	if r.ViewerCount() != 0 {
		t.Fatalf("ViewerCount = %d, want 0", r.ViewerCount())
	}
	r.RemoveViewer("missing")
}

func TestRelayBroadcastPage(t *testing.T) {
	t.Parallel()

	r := NewRelay()
	v1, v2 := newMockViewer("v1"), newMockViewer("v2")
	r.AddViewer(v1)
	r.AddViewer(v2)

	r.BroadcastPage(PageUpdate{Stream: "s", Page: "100", Function: "lop"})

	if v1.pageSent.Load() != 1 || v2.pageSent.Load() != 1 {
		t.Errorf("pages sent = %d, %d", v1.pageSent.Load(), v2.pageSent.Load())
	}
	if v1.pages[0].Page != "100" {
		t.Errorf("page = %q", v1.pages[0].Page)
	}
}

func TestRelayCaptionReplay(t *testing.T) {
	t.Parallel()

	r := NewRelay()
	r.BroadcastCaptions(&ccx.CaptionFrame{Channel: 888, Text: "old"})
	r.BroadcastCaptions(&ccx.CaptionFrame{Channel: 888, Text: "current"})
	r.BroadcastCaptions(&ccx.CaptionFrame{Channel: 777, Text: "other"})
	r.BroadcastCaptions(&ccx.CaptionFrame{Channel: 150, Text: "cleared"})
	r.BroadcastCaptions(&ccx.CaptionFrame{Channel: 150})

	v := newMockViewer("late")
	r.AddViewer(v)

	got := v.captionTexts()
	if len(got) != 2 || got[0] != "other" || got[1] != "current" {
		t.Errorf("replayed %q, want [other current]", got)
	}

	r.BroadcastCaptions(&ccx.CaptionFrame{Channel: 888, Text: "live"})
	if v.captionSent.Load() != 3 {
		t.Errorf("captions sent = %d, want 3", v.captionSent.Load())
	}
}

func TestRelayViewerStatsAll(t *testing.T) {
	t.Parallel()

	r := NewRelay()
	r.AddViewer(newMockViewer("b"))
	r.AddViewer(newMockViewer("a"))
	r.BroadcastPage(PageUpdate{Page: "100"})

	stats := r.ViewerStatsAll()
	if len(stats) != 2 || stats[0].ID != "a" || stats[1].Pages != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRelayConcurrent(t *testing.T) {
	t.Parallel()

	r := NewRelay()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := newMockViewer(string(rune('a' + i)))
			r.AddViewer(v)
			r.BroadcastCaptions(&ccx.CaptionFrame{Channel: i, Text: "x"})
			r.BroadcastPage(PageUpdate{Page: "100"})
			r.RemoveViewer(v.ID())
		}()
	}
	wg.Wait()
	if r.ViewerCount() != 0 {
		t.Errorf("ViewerCount = %d after all removed", r.ViewerCount())
	}
	if n := len(r.CurrentCaptions()); n != 8 {
		t.Errorf("current captions = %d, want 8", n)
	}
}
