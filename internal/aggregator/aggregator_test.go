package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/svirmi/sitewatch/internal/models"
)

func makeEvent(siteID string, ts time.Time, seq int64) models.MetricEvent {
	return models.MetricEvent{
		SiteID:             siteID,
		SiteName:           "Site " + siteID,
		Timestamp:          ts,
		PageViews:          100 + seq,
		UniqueVisitors:     40 + seq%17,
		BounceRate:         float64(seq%100) * 0.7,
		AvgSessionDuration: 30.5 + float64(seq%13),
		TopPages: []models.TopPage{
			{Path: "/", Views: 50 + seq},
			{Path: "/pricing", Views: 20},
		},
		PerformanceMetrics: models.PerformanceMetrics{
			LoadTime:               800 + float64(seq%31),
			FirstContentfulPaint:   400 + float64(seq%23),
			LargestContentfulPaint: 1200 + float64(seq%47),
		},
		UserFlow: []models.FlowEdge{{From: "/", To: "/pricing", Count: 3}},
	}
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	agg := New(5)
	base := time.Now()

	for i := 0; i < 100; i++ {
		agg.Ingest(makeEvent("site-1", base.Add(time.Duration(i)*time.Second), int64(i)))
		require.LessOrEqual(t, agg.Len("site-1"), 5)
	}

	snapshot, ok := agg.Snapshot("site-1")
	require.True(t, ok)
	require.Len(t, snapshot.Window, 5)
	// Everything ingested beyond the window must have been folded into
	// the baseline.
	require.Equal(t, int64(95), snapshot.Baseline.Count)

	stats := agg.Stats()
	require.Equal(t, int64(100), stats.TotalIngested)
	require.Equal(t, int64(95), stats.TotalEvicted)
}

func TestDefaultCapacity(t *testing.T) {
	agg := New(0)
	base := time.Now()

	for i := 0; i < DefaultCapacity+10; i++ {
		agg.Ingest(makeEvent("site-1", base.Add(time.Duration(i)*time.Second), int64(i)))
	}

	require.Equal(t, DefaultCapacity, agg.Len("site-1"))
	snapshot, _ := agg.Snapshot("site-1")
	require.Equal(t, int64(10), snapshot.Baseline.Count)
}

func TestBaselineMatchesDirectMean(t *testing.T) {
	const capacity = 5
	const evictions = 10000

	agg := New(capacity)
	base := time.Now()

	events := make([]models.MetricEvent, 0, evictions+capacity)
	for i := 0; i < evictions+capacity; i++ {
		events = append(events, makeEvent("site-1", base.Add(time.Duration(i)*time.Second), int64(i)))
	}
	for _, ev := range events {
		agg.Ingest(ev)
	}

	snapshot, ok := agg.Snapshot("site-1")
	require.True(t, ok)
	require.Equal(t, int64(evictions), snapshot.Baseline.Count)

	// Recompute the means directly over the evicted prefix.
	var pv, uv, br, asd, lt, fcp, lcp float64
	for _, ev := range events[:evictions] {
		pv += float64(ev.PageViews)
		uv += float64(ev.UniqueVisitors)
		br += ev.BounceRate
		asd += ev.AvgSessionDuration
		lt += ev.PerformanceMetrics.LoadTime
		fcp += ev.PerformanceMetrics.FirstContentfulPaint
		lcp += ev.PerformanceMetrics.LargestContentfulPaint
	}
	n := float64(evictions)

	require.InDelta(t, pv/n, snapshot.Baseline.PageViews, 1e-9)
	require.InDelta(t, uv/n, snapshot.Baseline.UniqueVisitors, 1e-9)
	require.InDelta(t, br/n, snapshot.Baseline.BounceRate, 1e-9)
	require.InDelta(t, asd/n, snapshot.Baseline.AvgSessionDuration, 1e-9)
	require.InDelta(t, lt/n, snapshot.Baseline.LoadTime, 1e-9)
	require.InDelta(t, fcp/n, snapshot.Baseline.FirstContentfulPaint, 1e-9)
	require.InDelta(t, lcp/n, snapshot.Baseline.LargestContentfulPaint, 1e-9)
}

func TestDuplicateTailIsNoOp(t *testing.T) {
	agg := New(5)
	base := time.Now()

	first := makeEvent("site-1", base, 0)
	second := makeEvent("site-1", base.Add(time.Second), 1)
	agg.Ingest(first)
	agg.Ingest(second)
	before, _ := agg.Snapshot("site-1")

	// Duplicate delivery of the tail frame.
	agg.Ingest(second)

	after, _ := agg.Snapshot("site-1")
	require.Equal(t, len(before.Window), len(after.Window))
	require.Equal(t, before.Baseline, after.Baseline)
	require.Equal(t, int64(1), agg.Stats().Deduplicated)
}

func TestDuplicateTailAtCapacity(t *testing.T) {
	agg := New(3)
	base := time.Now()

	var last models.MetricEvent
	for i := 0; i < 10; i++ {
		last = makeEvent("site-1", base.Add(time.Duration(i)*time.Second), int64(i))
		agg.Ingest(last)
	}
	before, _ := agg.Snapshot("site-1")

	agg.Ingest(last)

	after, _ := agg.Snapshot("site-1")
	require.Equal(t, before.Baseline, after.Baseline)
	require.Equal(t, 3, agg.Len("site-1"))
}

func TestOutOfOrderTimestampAppendsAtTail(t *testing.T) {
	agg := New(3)
	base := time.Now()

	agg.Ingest(makeEvent("site-1", base.Add(10*time.Second), 0))
	agg.Ingest(makeEvent("site-1", base.Add(5*time.Second), 1)) // earlier than tail

	snapshot, _ := agg.Snapshot("site-1")
	require.Len(t, snapshot.Window, 2)
	// Insertion order, not timestamp order, governs placement.
	require.Equal(t, base.Add(10*time.Second).Unix(), snapshot.Window[0].Timestamp.Unix())
	require.Equal(t, base.Add(5*time.Second).Unix(), snapshot.Window[1].Timestamp.Unix())

	// Overflow still evicts the insertion-oldest entry and accounts for it.
	agg.Ingest(makeEvent("site-1", base.Add(2*time.Second), 2))
	agg.Ingest(makeEvent("site-1", base.Add(1*time.Second), 3))

	snapshot, _ = agg.Snapshot("site-1")
	require.Len(t, snapshot.Window, 3)
	require.Equal(t, int64(1), snapshot.Baseline.Count)
	require.InDelta(t, 100.0, snapshot.Baseline.PageViews, 1e-9) // seq 0: pageViews 100
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	agg := New(5)
	agg.Ingest(makeEvent("site-1", time.Now(), 0))

	snapshot, _ := agg.Snapshot("site-1")
	snapshot.Window[0].PageViews = 999999
	snapshot.Window[0].TopPages[0].Views = 999999
	snapshot.Window = append(snapshot.Window, models.MetricEvent{SiteID: "bogus"})

	fresh, _ := agg.Snapshot("site-1")
	require.Len(t, fresh.Window, 1)
	require.Equal(t, int64(100), fresh.Window[0].PageViews)
	require.Equal(t, int64(50), fresh.Window[0].TopPages[0].Views)
}

func TestListSitesFirstObservationOrder(t *testing.T) {
	agg := New(5)
	base := time.Now()

	for i := 0; i < 3; i++ {
		siteID := fmt.Sprintf("site-%d", i)
		agg.Ingest(makeEvent(siteID, base, int64(i)))
	}
	// Re-ingest an earlier site; order must not change.
	agg.Ingest(makeEvent("site-0", base.Add(time.Second), 9))

	sites := agg.ListSites()
	require.Len(t, sites, 3)
	require.Equal(t, "site-0", sites[0].SiteID)
	require.Equal(t, "site-1", sites[1].SiteID)
	require.Equal(t, "site-2", sites[2].SiteID)
	require.Equal(t, "Site site-0", sites[0].SiteName)
}

func TestSnapshotUnknownSite(t *testing.T) {
	agg := New(5)
	_, ok := agg.Snapshot("nope")
	require.False(t, ok)
}

func TestIngestWithoutSiteIDIsDropped(t *testing.T) {
	agg := New(5)
	agg.Ingest(models.MetricEvent{Timestamp: time.Now()})
	require.Empty(t, agg.ListSites())
	require.Equal(t, int64(0), agg.Stats().TotalIngested)
}
