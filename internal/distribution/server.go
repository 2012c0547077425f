package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ttx/internal/certs"
	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/ingest"
	"github.com/zsiec/ttx/internal/vt"
)

// StreamProvider is implemented by the stream pipeline. It gives the API
// read access to the stream's decoder.
type StreamProvider interface {
	StreamSnapshot() StreamSnapshot
	Pages() []PageInfo
	Subpages(pgno int) []int
	Format(pgno, subno int, opts format.Options) (*format.Page, error)
	// Reset flushes the decoder as after a channel change.
	Reset()
}

// StreamInfo is the summary of a live stream returned by /api/streams.
type StreamInfo struct {
	Key         string `json:"key"`
	Viewers     int    `json:"viewers"`
	Protocol    string `json:"protocol,omitempty"`
	UptimeMs    int64  `json:"uptimeMs,omitempty"`
	Packets     int64  `json:"packets"`
	CachedPages int    `json:"cachedPages"`
	Captions    int64  `json:"captions"`
	InitialPage string `json:"initialPage,omitempty"`
}

// StreamDetail is the response of /api/streams/{key}.
type StreamDetail struct {
	Stream   StreamSnapshot      `json:"stream"`
	Ingest   *ingest.IngestStats `json:"ingest,omitempty"`
	Viewers  []ViewerStats       `json:"viewers"`
	Captions []CaptionMessage    `json:"captions"`
}

// PageResponse is a formatted page as JSON.
type PageResponse struct {
	Stream      string       `json:"stream"`
	Page        string       `json:"page"`
	Subpage     int          `json:"subpage"`
	Subpages    []int        `json:"subpages"`
	Level       vt.Level     `json:"level"`
	Degraded    bool         `json:"degraded"`
	ScreenColor int          `json:"screenColor"`
	Palette     []string     `json:"palette"`
	Lines       []string     `json:"lines"`
	Rows        []format.Row `json:"rows,omitempty"`
	NavLinks    []string     `json:"navLinks,omitempty"`
}

// IngestLookup resolves a stream key to its ingest connection stats, or
// nil when the stream is not being ingested.
type IngestLookup func(key string) *ingest.IngestStats

// SRTPullFunc starts an SRT caller-mode pull from a remote address.
type SRTPullFunc func(address, streamKey, streamID string) error

// SRTStopFunc stops an active SRT pull by stream key.
type SRTStopFunc func(streamKey string) error

// SRTListFunc returns all active SRT pulls.
type SRTListFunc func() []SRTPullInfo

// SRTPullInfo describes an active SRT caller-mode pull.
type SRTPullInfo struct {
	Address   string `json:"address"`
	StreamKey string `json:"streamKey"`
	StreamID  string `json:"streamId,omitempty"`
}

// FormatObserver is told how long each API Format call took.
type FormatObserver func(stream string, level vt.Level, d time.Duration)

// statsInterval is how often websocket viewers receive a stats message.
const statsInterval = 2 * time.Second

// ServerConfig holds the configuration of the API server.
type ServerConfig struct {
	// Addr is the HTTPS (TCP) listen address.
	Addr string
	// H3Addr is the HTTP/3 (UDP) listen address; empty disables HTTP/3.
	H3Addr string
	Cert   *certs.CertInfo
	// CORS allows any origin.
	CORS bool
	// Defaults are the format options of requests that set none.
	Defaults format.Options

	Metrics       http.Handler
	MetricsPath   string
	ObserveFormat FormatObserver

	IngestLookup IngestLookup
	SRTPull      SRTPullFunc
	SRTStop      SRTStopFunc
	SRTList      SRTListFunc
	Logger       *slog.Logger
}

// streamResources bundles the relay and pipeline of a stream so both are
// registered and torn down as a unit.
type streamResources struct {
	relay    *Relay
	pipeline StreamProvider
}

// Server serves the JSON API over HTTPS and HTTP/3 and pushes page and
// caption events to websocket viewers.
type Server struct {
	config ServerConfig
	log    *slog.Logger
	h3     *http3.Server

	mu      sync.RWMutex
	streams map[string]*streamResources
}

// NewServer creates a Server. Cert and Addr are required.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Cert == nil {
		return nil, errors.New("distribution: Cert is required")
	}
	if config.Addr == "" {
		return nil, errors.New("distribution: Addr is required")
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config:  config,
		log:     log.With("component", "api"),
		streams: make(map[string]*streamResources),
	}
	if config.H3Addr != "" {
		s.h3 = &http3.Server{
			Addr:      config.H3Addr,
			TLSConfig: config.Cert.TLSConfig(),
			QUICConfig: &quic.Config{
				MaxIdleTimeout: 30 * time.Second,
			},
		}
	}
	return s, nil
}

// RegisterStream creates the Relay of a stream key and returns it. An
// existing relay is returned as is.
func (s *Server) RegisterStream(streamKey string) *Relay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok := s.streams[streamKey]; ok {
		return sr.relay
	}
	r := NewRelay()
	s.streams[streamKey] = &streamResources{relay: r}
	return r
}

// UnregisterStream removes the relay and pipeline of a stream key.
func (s *Server) UnregisterStream(streamKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, streamKey)
}

// SetPipeline attaches the pipeline of a registered stream.
func (s *Server) SetPipeline(streamKey string, p StreamProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok := s.streams[streamKey]; ok {
		sr.pipeline = p
	}
}

// GetPipeline returns the pipeline of a stream key, or nil.
func (s *Server) GetPipeline(streamKey string) StreamProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sr, ok := s.streams[streamKey]; ok {
		return sr.pipeline
	}
	return nil
}

// GetRelay returns the Relay of a stream key, or nil.
func (s *Server) GetRelay(streamKey string) *Relay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sr, ok := s.streams[streamKey]; ok {
		return sr.relay
	}
	return nil
}

// lookup returns both halves of a stream with a pipeline attached.
func (s *Server) lookup(streamKey string) (*Relay, StreamProvider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.streams[streamKey]
	if !ok || sr.pipeline == nil {
		return nil, nil, false
	}
	return sr.relay, sr.pipeline, true
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/streams", s.handleListStreams)
	mux.HandleFunc("GET /api/streams/{key}", s.handleStream)
	mux.HandleFunc("POST /api/streams/{key}/reset", s.handleReset)
	mux.HandleFunc("GET /api/streams/{key}/pages", s.handleListPages)
	mux.HandleFunc("GET /api/streams/{key}/pages/{page}", s.handlePage)
	mux.HandleFunc("GET /api/streams/{key}/captions", s.handleCaptions)
	mux.HandleFunc("GET /api/streams/{key}/events", s.handleEvents)
	mux.HandleFunc("GET /api/cert-hash", s.handleCertHash)
	mux.HandleFunc("GET /api/srt-pull", s.handleSRTPullList)
	mux.HandleFunc("POST /api/srt-pull", s.handleSRTPullCreate)
	mux.HandleFunc("DELETE /api/srt-pull", s.handleSRTPullStop)
	mux.HandleFunc("OPTIONS /api/srt-pull", s.handleSRTPullOptions)
	if s.config.Metrics != nil {
		mux.Handle("GET "+s.config.MetricsPath, s.config.Metrics)
	}
}

// APIHandler returns the handler of every API route.
func (s *Server) APIHandler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	var h http.Handler = mux
	if s.config.CORS {
		h = corsMiddleware(h)
	}
	if s.h3 != nil {
		h = s.altSvcMiddleware(h)
	}
	return h
}

// altSvcMiddleware advertises the HTTP/3 endpoint on TCP responses.
func (s *Server) altSvcMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor < 3 {
			if err := s.h3.SetQUICHeaders(w.Header()); err != nil {
				s.log.Debug("alt-svc header", "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Start serves the API over HTTPS on Addr and, when configured, HTTP/3 on
// H3Addr. It blocks until ctx is cancelled or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	handler := s.APIHandler()
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           handler,
		TLSConfig:         s.config.Cert.TLSConfig(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTPS API listening", "addr", s.config.Addr)
		if err := srv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	if s.h3 != nil {
		s.h3.Handler = handler
		g.Go(func() error {
			s.log.Info("HTTP/3 API listening", "addr", s.config.H3Addr)
			err := s.h3.ListenAndServe()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("HTTP/3 server: %w", err)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.h3 != nil {
			s.h3.Close()
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleListStreams(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := make([]StreamInfo, 0, len(s.streams))
	for key, sr := range s.streams {
		info := StreamInfo{Key: key, Viewers: sr.relay.ViewerCount()}
		if sr.pipeline != nil {
			snap := sr.pipeline.StreamSnapshot()
			info.Protocol = snap.Protocol
			info.UptimeMs = snap.UptimeMs
			info.Packets = snap.Packets
			info.CachedPages = snap.CachedPages
			info.Captions = snap.Captions
			info.InitialPage = snap.InitialPage
		}
		resp = append(resp, info)
	}
	s.mu.RUnlock()

	sort.Slice(resp, func(i, j int) bool { return resp[i].Key < resp[j].Key })
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	relay, p, ok := s.lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	detail := StreamDetail{
		Stream:   p.StreamSnapshot(),
		Viewers:  relay.ViewerStatsAll(),
		Captions: captionMessages(relay.CurrentCaptions()),
	}
	if s.config.IngestLookup != nil {
		detail.Ingest = s.config.IngestLookup(key)
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	_, p, ok := s.lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	p.Reset()
	s.log.Info("decoder reset requested", "stream", key, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset", "stream": key})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.lookup(r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	writeJSON(w, http.StatusOK, p.Pages())
}

func (s *Server) handleCaptions(w http.ResponseWriter, r *http.Request) {
	relay, _, ok := s.lookup(r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	writeJSON(w, http.StatusOK, captionMessages(relay.CurrentCaptions()))
}

// pageQuery is the parsed query of a page request.
type pageQuery struct {
	pgno   int
	subno  int
	opts   format.Options
	reveal bool
	cells  bool
	text   bool
}

func (s *Server) parsePageQuery(r *http.Request) (pageQuery, error) {
	q := pageQuery{subno: vt.AnySubno, opts: s.config.Defaults}
	var err error
	if q.pgno, err = vt.ParsePage(r.PathValue("page")); err != nil {
		return q, err
	}
	v := r.URL.Query()
	if sub := v.Get("subpage"); sub != "" {
		n, err := strconv.ParseUint(sub, 16, 16)
		if err != nil || n > 0x3F7F {
			return q, fmt.Errorf("bad subpage %q", sub)
		}
		q.subno = int(n)
	}
	if lv := v.Get("level"); lv != "" {
		if q.opts.Level, err = vt.ParseLevel(lv); err != nil {
			return q, err
		}
	}
	if rows := v.Get("rows"); rows != "" {
		n, err := strconv.Atoi(rows)
		if err != nil || n < 1 || n > format.Rows {
			return q, fmt.Errorf("bad rows %q", rows)
		}
		q.opts.Rows = n
	}
	flags := []struct {
		name string
		dst  *bool
	}{
		{"nav", &q.opts.Navigation},
		{"reveal", &q.reveal},
		{"cells", &q.cells},
	}
	for _, f := range flags {
		if s := v.Get(f.name); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return q, fmt.Errorf("bad %s %q", f.name, s)
			}
			*f.dst = b
		}
	}
	switch v.Get("format") {
	case "", "json":
	case "text":
		q.text = true
	default:
		return q, fmt.Errorf("bad format %q", v.Get("format"))
	}
	return q, nil
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	_, p, ok := s.lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, "stream not found")
		return
	}
	q, err := s.parsePageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	pg, err := p.Format(q.pgno, q.subno, q.opts)
	if s.config.ObserveFormat != nil {
		s.config.ObserveFormat(key, q.opts.Level, time.Since(start))
	}
	switch {
	case errors.Is(err, format.ErrNotCached):
		writeError(w, http.StatusNotFound, "page not cached")
		return
	case errors.Is(err, format.ErrNotDisplayable):
		writeError(w, http.StatusUnprocessableEntity, "page is not displayable")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if q.text {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, pg.Text(q.reveal))
		return
	}

	resp := PageResponse{
		Stream:      key,
		Page:        vt.FormatPage(pg.Pgno),
		Subpage:     pg.Subno,
		Subpages:    p.Subpages(q.pgno),
		Level:       pg.Level,
		Degraded:    pg.Degraded,
		ScreenColor: pg.ScreenColor,
		Palette:     make([]string, len(pg.Palette)),
		Lines:       pg.Lines(q.reveal),
	}
	for i, c := range pg.Palette {
		resp.Palette[i] = fmt.Sprintf("#%06X", uint32(c))
	}
	if q.cells {
		resp.Rows = pg.Rows(q.reveal)
	}
	if q.opts.Navigation {
		for _, l := range pg.NavLink {
			if l.Valid() {
				resp.NavLinks = append(resp.NavLinks, vt.FormatPage(l.Pgno))
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type certHashResponse struct {
	Hash   string `json:"hash"`
	Addr   string `json:"addr"`
	H3Addr string `json:"h3Addr,omitempty"`
}

func (s *Server) handleCertHash(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, certHashResponse{
		Hash:   s.config.Cert.FingerprintBase64(),
		Addr:   s.config.Addr,
		H3Addr: s.config.H3Addr,
	})
}

func (s *Server) handleSRTPullOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

// SECURITY: the SRT pull endpoint dials arbitrary addresses. Expose it
// only to operators.
func (s *Server) handleSRTPullList(w http.ResponseWriter, _ *http.Request) {
	if s.config.SRTList == nil {
		writeJSON(w, http.StatusOK, []SRTPullInfo{})
		return
	}
	writeJSON(w, http.StatusOK, s.config.SRTList())
}

func (s *Server) handleSRTPullCreate(w http.ResponseWriter, r *http.Request) {
	if s.config.SRTPull == nil {
		writeError(w, http.StatusNotImplemented, "SRT pull not configured")
		return
	}
	var req SRTPullInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Address == "" || req.StreamKey == "" {
		writeError(w, http.StatusBadRequest, "address and streamKey are required")
		return
	}
	if err := s.config.SRTPull(req.Address, req.StreamKey, req.StreamID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "pulling", "streamKey": req.StreamKey})
}

func (s *Server) handleSRTPullStop(w http.ResponseWriter, r *http.Request) {
	if s.config.SRTStop == nil {
		writeError(w, http.StatusNotImplemented, "SRT pull not configured")
		return
	}
	streamKey := r.URL.Query().Get("streamKey")
	if streamKey == "" {
		writeError(w, http.StatusBadRequest, "streamKey query parameter required")
		return
	}
	if err := s.config.SRTStop(streamKey); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "streamKey": streamKey})
}
