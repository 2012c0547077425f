package distribution

import (
	"github.com/zsiec/ttx/internal/teletext"
)

// StreamSnapshot is a point-in-time view of a stream's pipeline, served by
// the stream endpoints and pushed to websocket viewers.
type StreamSnapshot struct {
	Key         string         `json:"key"`
	Protocol    string         `json:"protocol,omitempty"`
	UptimeMs    int64          `json:"uptimeMs"`
	Packets     int64          `json:"packets"`
	FeedErrors  int64          `json:"feedErrors"`
	Desyncs     int64          `json:"desyncs"`
	Captions    int64          `json:"captions"`
	PageUpdates int64          `json:"pageUpdates"`
	LastPTS     int64          `json:"lastPts"`
	Viewers     int            `json:"viewers"`
	Decoder     teletext.Stats `json:"decoder"`
	CachedPages int            `json:"cachedPages"`
	NetworkID   int            `json:"networkId,omitempty"`
	Status      string         `json:"status,omitempty"`
	InitialPage string         `json:"initialPage,omitempty"`
}

// PageInfo summarises one cached page for listings.
type PageInfo struct {
	Page     string `json:"page"`
	Subpages []int  `json:"subpages"`
	Type     string `json:"type"`
}
