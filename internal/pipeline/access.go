package pipeline

import (
	"time"

	"github.com/zsiec/ttx/internal/distribution"
	"github.com/zsiec/ttx/internal/format"
	"github.com/zsiec/ttx/internal/vt"
)

// StreamSnapshot returns the pipeline counters.
func (p *Pipeline) StreamSnapshot() distribution.StreamSnapshot {
	s := distribution.StreamSnapshot{
		Key:         p.streamKey,
		Protocol:    p.protocol,
		UptimeMs:    time.Since(p.startTime).Milliseconds(),
		Packets:     p.packets.Load(),
		FeedErrors:  p.feedErrors.Load(),
		Desyncs:     p.desyncs.Load(),
		Captions:    p.captionsFwd.Load(),
		PageUpdates: p.pagesFwd.Load(),
		LastPTS:     p.lastPTS.Load(),
		Viewers:     p.relay.ViewerCount(),
		Decoder:     p.dec.Stats(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s.CachedPages = p.dec.Cache().Len()
	s.NetworkID = p.dec.NetworkID()
	s.Status = p.dec.StatusText()
	if l := p.dec.InitialPage(); l.Valid() {
		s.InitialPage = vt.FormatPage(l.Pgno)
	}
	return s
}

// Format formats a cached page of the stream.
func (p *Pipeline) Format(pgno, subno int, opts format.Options) (*format.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dec.Format(pgno, subno, opts)
}

// Pages lists the cached displayable pages with their subpages.
func (p *Pipeline) Pages() []distribution.PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	pgnos := p.dec.Pages()
	out := make([]distribution.PageInfo, 0, len(pgnos))
	for _, pgno := range pgnos {
		out = append(out, distribution.PageInfo{
			Page:     vt.FormatPage(pgno),
			Subpages: p.dec.Subpages(pgno),
			Type:     p.dec.PageStat(pgno).Type.String(),
		})
	}
	return out
}

// Subpages returns the cached subpage numbers of pgno.
func (p *Pipeline) Subpages(pgno int) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dec.Subpages(pgno)
}

// Reset discards all decoded state before the next packet, as after a
// channel change at the source.
func (p *Pipeline) Reset() {
	p.dec.RequestChannelSwitch()
	p.mu.Lock()
	clear(p.lastText)
	p.mu.Unlock()
}
