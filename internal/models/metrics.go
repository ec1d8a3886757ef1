package models

import "time"

// TopPage is one entry of a site's page ranking, already rank-ordered
// by the event source.
type TopPage struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

// PerformanceMetrics carries the page performance readings attached to
// a metric event.
type PerformanceMetrics struct {
	LoadTime               float64 `json:"loadTime"`
	FirstContentfulPaint   float64 `json:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint"`
}

// FlowEdge is a single transition in a site's user flow graph.
type FlowEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int64  `json:"count"`
}

// MetricEvent describes one observation interval for one site. Events are
// immutable once decoded; they are eventually evicted from the window or
// folded into a baseline. Timestamps are not guaranteed monotonic per site.
type MetricEvent struct {
	SiteID             string             `json:"siteId"`
	SiteName           string             `json:"siteName"`
	Timestamp          time.Time          `json:"timestamp"`
	PageViews          int64              `json:"pageViews"`
	UniqueVisitors     int64              `json:"uniqueVisitors"`
	BounceRate         float64            `json:"bounceRate"`
	AvgSessionDuration float64            `json:"avgSessionDuration"`
	TopPages           []TopPage          `json:"topPages,omitempty"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	UserFlow           []FlowEdge         `json:"userFlow,omitempty"`
}

// SiteInfo identifies a site that has been observed at least once.
type SiteInfo struct {
	SiteID   string `json:"siteId"`
	SiteName string `json:"siteName"`
}

// Baseline holds the running arithmetic mean of every numeric field across
// all events evicted from a site's window. Count is the number of events
// folded in so far.
type Baseline struct {
	PageViews              float64 `json:"pageViews"`
	UniqueVisitors         float64 `json:"uniqueVisitors"`
	BounceRate             float64 `json:"bounceRate"`
	AvgSessionDuration     float64 `json:"avgSessionDuration"`
	LoadTime               float64 `json:"loadTime"`
	FirstContentfulPaint   float64 `json:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint"`
	Count                  int64   `json:"count"`
}

// SiteSnapshot is a read-only view of one site's recent history.
type SiteSnapshot struct {
	Window   []MetricEvent `json:"window"`
	Baseline Baseline      `json:"baseline"`
}
