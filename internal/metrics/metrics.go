// Package metrics exports decoder, demuxer and API counters to
// Prometheus. Every series carries a stream label.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsiec/ttx/internal/demux"
	"github.com/zsiec/ttx/internal/teletext"
	"github.com/zsiec/ttx/internal/vt"
)

const namespace = "ttx"

// Metrics owns a Prometheus registry and the collectors of all streams.
type Metrics struct {
	reg *prometheus.Registry

	packets        *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	pagesStored    *prometheus.CounterVec
	pagesDiscarded *prometheus.CounterVec
	switches       *prometheus.CounterVec

	pes          *prometheus.CounterVec
	pesBytes     *prometheus.CounterVec
	lines        *prometheus.CounterVec
	skippedUnits *prometheus.CounterVec
	desyncs      *prometheus.CounterVec

	formatSeconds *prometheus.HistogramVec
	streams       prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, append([]string{"stream"}, labels...))
	}

	return &Metrics{
		reg:            reg,
		packets:        counter("packets_total", "Teletext packets decoded, by packet number.", "packet"),
		decodeErrors:   counter("decode_errors_total", "Packets dropped for uncorrectable codewords, by field.", "field"),
		pagesStored:    counter("pages_stored_total", "Pages stored in the cache, by page function.", "function"),
		pagesDiscarded: counter("pages_discarded_total", "Pages dropped before storage, by reason.", "reason"),
		switches:       counter("channel_switches_total", "Channel switches that flushed the decoder."),
		pes:            counter("pes_packets_total", "Teletext PES packets demuxed, by PID.", "pid"),
		pesBytes:       counter("pes_bytes_total", "Teletext PES payload bytes demuxed, by PID.", "pid"),
		lines:          counter("data_units_total", "Teletext data units extracted, by data unit id.", "unit"),
		skippedUnits:   counter("skipped_data_units_total", "Non-teletext or stuffing data units skipped."),
		desyncs:        counter("desyncs_total", "Timestamp discontinuities that discarded pages in progress."),
		formatSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "format_seconds",
			Help:      "Time to format a page, by presentation level.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"stream", "level"}),
		streams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams",
			Help:      "Active streams.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// SetStreams records the number of active streams.
func (m *Metrics) SetStreams(n int) { m.streams.Set(float64(n)) }

// ObserveFormat records the duration of one Format call.
func (m *Metrics) ObserveFormat(stream string, level vt.Level, d time.Duration) {
	m.formatSeconds.WithLabelValues(stream, level.String()).Observe(d.Seconds())
}

// Remove deletes every series of stream.
func (m *Metrics) Remove(stream string) {
	l := prometheus.Labels{"stream": stream}
	for _, v := range []*prometheus.CounterVec{
		m.packets, m.decodeErrors, m.pagesStored, m.pagesDiscarded, m.switches,
		m.pes, m.pesBytes, m.lines, m.skippedUnits, m.desyncs,
	} {
		v.DeletePartialMatch(l)
	}
	m.formatSeconds.DeletePartialMatch(l)
}

// Stream returns the collectors of one stream. The result serves as both
// the decoder's Observer and the demuxer's StatsRecorder.
func (m *Metrics) Stream(key string) *Stream {
	l := prometheus.Labels{"stream": key}
	return &Stream{
		packets:        m.packets.MustCurryWith(l),
		decodeErrors:   m.decodeErrors.MustCurryWith(l),
		pagesStored:    m.pagesStored.MustCurryWith(l),
		pagesDiscarded: m.pagesDiscarded.MustCurryWith(l),
		switches:       m.switches.WithLabelValues(key),
		pes:            m.pes.MustCurryWith(l),
		pesBytes:       m.pesBytes.MustCurryWith(l),
		lines:          m.lines.MustCurryWith(l),
		skippedUnits:   m.skippedUnits.WithLabelValues(key),
		desyncs:        m.desyncs.WithLabelValues(key),
	}
}

// Stream records the events of one stream.
type Stream struct {
	packets        *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	pagesStored    *prometheus.CounterVec
	pagesDiscarded *prometheus.CounterVec
	switches       prometheus.Counter

	pes          *prometheus.CounterVec
	pesBytes     *prometheus.CounterVec
	lines        *prometheus.CounterVec
	skippedUnits prometheus.Counter
	desyncs      prometheus.Counter
}

var (
	_ teletext.Observer   = (*Stream)(nil)
	_ demux.StatsRecorder = (*Stream)(nil)
)

// Packet numbers are bounded (0-31), so the label set stays small.
var packetLabels = func() [32]string {
	var s [32]string
	for i := range s {
		s[i] = strconv.Itoa(i)
	}
	return s
}()

func (s *Stream) PacketDecoded(packet int) {
	if packet >= 0 && packet < len(packetLabels) {
		s.packets.WithLabelValues(packetLabels[packet]).Inc()
	}
}

func (s *Stream) DecodeError(field string) { s.decodeErrors.WithLabelValues(field).Inc() }

func (s *Stream) PageStored(f vt.Function) { s.pagesStored.WithLabelValues(f.String()).Inc() }

func (s *Stream) PageDiscarded(reason string) { s.pagesDiscarded.WithLabelValues(reason).Inc() }

func (s *Stream) ChannelSwitched() { s.switches.Inc() }

func (s *Stream) RecordPES(pid uint16, bytes int) {
	p := strconv.Itoa(int(pid))
	s.pes.WithLabelValues(p).Inc()
	s.pesBytes.WithLabelValues(p).Add(float64(bytes))
}

func (s *Stream) RecordLine(unitID byte) {
	s.lines.WithLabelValues("0x" + strconv.FormatUint(uint64(unitID), 16)).Inc()
}

func (s *Stream) RecordSkippedUnits(n int) { s.skippedUnits.Add(float64(n)) }

func (s *Stream) RecordDesync() { s.desyncs.Inc() }
