package distribution

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/zsiec/ccx"
)

// Viewer is a connected client that receives a stream's events from a
// Relay.
type Viewer interface {
	ID() string
	SendCaptions(frame *ccx.CaptionFrame)
	SendPage(ev PageUpdate)
	Stats() ViewerStats
}

// PageUpdate announces that a page was stored in a stream's cache.
type PageUpdate struct {
	Stream    string `json:"stream"`
	Page      string `json:"page"`
	Subpage   int    `json:"subpage"`
	Function  string `json:"function"`
	Subtitle  bool   `json:"subtitle,omitempty"`
	Newsflash bool   `json:"newsflash,omitempty"`
	// PTS is the presentation time in microseconds of the packet that
	// completed the page, -1 when unknown.
	PTS int64 `json:"pts"`
}

// ViewerStats are the delivery counters of one viewer.
type ViewerStats struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Captions   int64  `json:"captions"`
	Pages      int64  `json:"pages"`
	Dropped    int64  `json:"dropped"`
}

// Relay is the fan-out hub for a single stream. It keeps the most recent
// caption of every subtitle channel so a late-joining viewer starts with
// the text currently on screen.
type Relay struct {
	log      *slog.Logger
	mu       sync.RWMutex
	sessions map[string]Viewer

	captionMu sync.RWMutex
	captions  map[int]*ccx.CaptionFrame
}

// NewRelay creates a Relay with no viewers.
func NewRelay() *Relay {
	return &Relay{
		log:      slog.With("component", "relay"),
		sessions: make(map[string]Viewer),
		captions: make(map[int]*ccx.CaptionFrame),
	}
}

// AddViewer replays the current captions to v, then registers it for live
// delivery.
func (r *Relay) AddViewer(v Viewer) {
	for _, f := range r.CurrentCaptions() {
		v.SendCaptions(f)
	}

	r.mu.Lock()
	r.sessions[v.ID()] = v
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("viewer added", "session", v.ID(), "viewers", n)
}

// RemoveViewer unregisters a viewer by ID.
func (r *Relay) RemoveViewer(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("viewer removed", "session", id, "viewers", n)
}

// CurrentCaptions returns the latest non-empty caption of every channel,
// ordered by channel.
func (r *Relay) CurrentCaptions() []*ccx.CaptionFrame {
	r.captionMu.RLock()
	defer r.captionMu.RUnlock()
	out := make([]*ccx.CaptionFrame, 0, len(r.captions))
	for _, f := range r.captions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// BroadcastCaptions sends a caption frame to all viewers. An empty text
// clears the channel.
func (r *Relay) BroadcastCaptions(frame *ccx.CaptionFrame) {
	r.captionMu.Lock()
	if frame.Text == "" {
		delete(r.captions, frame.Channel)
	} else {
		r.captions[frame.Channel] = frame
	}
	r.captionMu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		s.SendCaptions(frame)
	}
}

// BroadcastPage sends a page update to all viewers.
func (r *Relay) BroadcastPage(ev PageUpdate) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		s.SendPage(ev)
	}
}

// ViewerCount returns the number of connected viewers.
func (r *Relay) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ViewerStatsAll returns the delivery counters of every viewer.
func (r *Relay) ViewerStatsAll() []ViewerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make([]ViewerStats, 0, len(r.sessions))
	for _, s := range r.sessions {
		stats = append(stats, s.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}
