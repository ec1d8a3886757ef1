package aggregator

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/svirmi/sitewatch/internal/logger"
	"github.com/svirmi/sitewatch/internal/models"
)

var log zerolog.Logger

func init() {
	log = logger.GetLogger("aggregator")
}

// DefaultCapacity is the per-site window size when none is configured.
const DefaultCapacity = 200

// siteSeries is the bounded recent history for one site plus the running
// baseline of everything evicted from it. Series live for the process
// duration and are never destroyed.
type siteSeries struct {
	info     models.SiteInfo
	window   []models.MetricEvent
	baseline models.Baseline
}

type Stats struct {
	Sites         int
	TotalIngested int64
	Deduplicated  int64
	TotalEvicted  int64
}

// Aggregator routes metric events into per-site series. A single mutex
// serializes all mutation; reads hand out defensive copies.
type Aggregator struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*siteSeries
	order    []string // site ids in first-observation order

	totalIngested int64
	deduplicated  int64
	totalEvicted  int64
}

func New(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		capacity: capacity,
		series:   make(map[string]*siteSeries),
	}
}

// Ingest appends an event to its site's window, evicting the oldest entry
// into the baseline once the window is at capacity. Insertion order governs
// placement; out-of-order timestamps are tolerated. Redelivery of the
// current tail (same site, same timestamp) is a no-op.
func (a *Aggregator) Ingest(event models.MetricEvent) {
	if event.SiteID == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.series[event.SiteID]
	if s == nil {
		s = &siteSeries{
			info:   models.SiteInfo{SiteID: event.SiteID, SiteName: event.SiteName},
			window: make([]models.MetricEvent, 0, a.capacity),
		}
		a.series[event.SiteID] = s
		a.order = append(a.order, event.SiteID)
		log.Debug().Str("site_id", event.SiteID).Msg("New site series created")
	} else if n := len(s.window); n > 0 {
		// Idempotency check on the tail only: duplicate delivery of the
		// last observed frame must not recompute anything downstream.
		if s.window[n-1].Timestamp.Equal(event.Timestamp) {
			a.deduplicated++
			return
		}
	}

	if event.SiteName != "" {
		s.info.SiteName = event.SiteName
	}

	if len(s.window) >= a.capacity {
		evicted := s.window[0]
		s.baseline = fold(s.baseline, evicted)
		copy(s.window, s.window[1:])
		s.window = s.window[:len(s.window)-1]
		a.totalEvicted++
	}

	s.window = append(s.window, event)
	a.totalIngested++
}

// Snapshot returns a defensive copy of one site's window and baseline.
func (a *Aggregator) Snapshot(siteID string) (models.SiteSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.series[siteID]
	if s == nil {
		return models.SiteSnapshot{}, false
	}

	window := make([]models.MetricEvent, len(s.window))
	for i, ev := range s.window {
		window[i] = copyEvent(ev)
	}
	return models.SiteSnapshot{Window: window, Baseline: s.baseline}, true
}

// ListSites reports every site ever observed, in first-observation order.
func (a *Aggregator) ListSites() []models.SiteInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sites := make([]models.SiteInfo, 0, len(a.order))
	for _, id := range a.order {
		sites = append(sites, a.series[id].info)
	}
	return sites
}

// Len reports the current window length for a site.
func (a *Aggregator) Len(siteID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s := a.series[siteID]; s != nil {
		return len(s.window)
	}
	return 0
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		Sites:         len(a.series),
		TotalIngested: a.totalIngested,
		Deduplicated:  a.deduplicated,
		TotalEvicted:  a.totalEvicted,
	}
}

// fold updates every baseline mean with the streaming formula
// b' = b + (x - b) / (n + 1), so the evicted history itself is never kept.
func fold(b models.Baseline, ev models.MetricEvent) models.Baseline {
	n := float64(b.Count + 1)
	b.PageViews += (float64(ev.PageViews) - b.PageViews) / n
	b.UniqueVisitors += (float64(ev.UniqueVisitors) - b.UniqueVisitors) / n
	b.BounceRate += (ev.BounceRate - b.BounceRate) / n
	b.AvgSessionDuration += (ev.AvgSessionDuration - b.AvgSessionDuration) / n
	b.LoadTime += (ev.PerformanceMetrics.LoadTime - b.LoadTime) / n
	b.FirstContentfulPaint += (ev.PerformanceMetrics.FirstContentfulPaint - b.FirstContentfulPaint) / n
	b.LargestContentfulPaint += (ev.PerformanceMetrics.LargestContentfulPaint - b.LargestContentfulPaint) / n
	b.Count++
	return b
}

// copyEvent clones an event including its nested slices so snapshot holders
// cannot reach back into aggregator state.
func copyEvent(ev models.MetricEvent) models.MetricEvent {
	out := ev
	if len(ev.TopPages) > 0 {
		out.TopPages = append([]models.TopPage(nil), ev.TopPages...)
	}
	if len(ev.UserFlow) > 0 {
		out.UserFlow = append([]models.FlowEdge(nil), ev.UserFlow...)
	}
	return out
}
