package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zsiec/ccx"

	"github.com/zsiec/ttx/internal/vt"
)

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy in front of the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// CaptionMessage is a caption frame as sent to clients.
type CaptionMessage struct {
	Channel int    `json:"channel"`
	Page    string `json:"page"`
	Text    string `json:"text"`
	PTS     int64  `json:"pts"`
}

func captionMessage(f *ccx.CaptionFrame) CaptionMessage {
	return CaptionMessage{
		Channel: f.Channel,
		Page:    vt.FormatPage(vt.DecToBCD(f.Channel)),
		Text:    f.Text,
		PTS:     f.PTS,
	}
}

func captionMessages(frames []*ccx.CaptionFrame) []CaptionMessage {
	out := make([]CaptionMessage, len(frames))
	for i, f := range frames {
		out[i] = captionMessage(f)
	}
	return out
}

// wsMessage is the envelope of every websocket message. Type is "caption",
// "page" or "stats".
type wsMessage struct {
	Type        string          `json:"type"`
	Caption     *CaptionMessage `json:"caption,omitempty"`
	Page        *PageUpdate     `json:"page,omitempty"`
	Stats       *StreamSnapshot `json:"stats,omitempty"`
	ViewerStats *ViewerStats    `json:"viewerStats,omitempty"`
}

// wsViewer delivers a stream's events to one websocket client. Sends never
// block the relay: messages that do not fit the buffer are dropped.
type wsViewer struct {
	id     string
	remote string
	conn   *websocket.Conn
	send   chan []byte
	// pages restricts page updates to these page numbers; nil passes all.
	pages map[string]bool

	captions atomic.Int64
	pageEvts atomic.Int64
	dropped  atomic.Int64
}

func newWSViewer(id, remote string, conn *websocket.Conn, pages map[string]bool) *wsViewer {
	return &wsViewer{
		id:     id,
		remote: remote,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		pages:  pages,
	}
}

func (v *wsViewer) ID() string { return v.id }

func (v *wsViewer) enqueue(m wsMessage) bool {
	b, err := json.Marshal(m)
	if err != nil {
		slog.Error("encoding websocket message", "error", err)
		return false
	}
	select {
	case v.send <- b:
		return true
	default:
		v.dropped.Add(1)
		return false
	}
}

func (v *wsViewer) SendCaptions(f *ccx.CaptionFrame) {
	c := captionMessage(f)
	if v.pages != nil && !v.pages[c.Page] {
		return
	}
	if v.enqueue(wsMessage{Type: "caption", Caption: &c}) {
		v.captions.Add(1)
	}
}

func (v *wsViewer) SendPage(ev PageUpdate) {
	if v.pages != nil && !v.pages[ev.Page] {
		return
	}
	if v.enqueue(wsMessage{Type: "page", Page: &ev}) {
		v.pageEvts.Add(1)
	}
}

func (v *wsViewer) Stats() ViewerStats {
	return ViewerStats{
		ID:         v.id,
		RemoteAddr: v.remote,
		Captions:   v.captions.Load(),
		Pages:      v.pageEvts.Load(),
		Dropped:    v.dropped.Load(),
	}
}

// run writes queued messages, pings and periodic stats until the client
// goes away or ctx is done.
func (v *wsViewer) run(ctx context.Context, stats func() StreamSnapshot) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Client messages are ignored; reading keeps pongs and close frames
	// flowing.
	v.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := v.conn.ReadMessage(); err != nil {
				readErr <- err
				cancel()
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	tick := time.NewTicker(statsInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		case b := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := v.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}
		case <-ping.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return err
			}
		case <-tick.C:
			snap := stats()
			vs := v.Stats()
			v.enqueue(wsMessage{Type: "stats", Stats: &snap, ViewerStats: &vs})
		}
	}
}

// handleEvents upgrades to a websocket that receives the stream's caption
// and page events. ?pages=100,888 limits them to those pages.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	relay, p, ok := s.lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}

	var pages map[string]bool
	if list := r.URL.Query().Get("pages"); list != "" {
		pages = make(map[string]bool)
		for _, f := range strings.Split(list, ",") {
			pgno, err := vt.ParsePage(strings.TrimSpace(f))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			pages[vt.FormatPage(pgno)] = true
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "stream", key, "error", err)
		return
	}
	defer conn.Close()

	v := newWSViewer(fmt.Sprintf("ws-%s-%s", key, r.RemoteAddr), r.RemoteAddr, conn, pages)
	relay.AddViewer(v)
	defer relay.RemoveViewer(v.ID())

	err = v.run(r.Context(), p.StreamSnapshot)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Debug("websocket viewer ended", "session", v.ID(), "error", err)
	}
}
