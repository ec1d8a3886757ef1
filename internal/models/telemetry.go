package models

import "time"

// AlertCategory names one self-monitoring alert rule.
type AlertCategory string

const (
	AlertLowFPS      AlertCategory = "Low FPS"
	AlertHighMemory  AlertCategory = "High Memory Usage"
	AlertHighLatency AlertCategory = "High WebSocket Latency"
)

// TelemetrySample is one aggregated reading of the application's own health.
// A new sample supersedes the previous one on every field update; LatencyMs
// is nil until the first round trip completes, and the memory fields stay
// zero when the host exposes no heap introspection.
type TelemetrySample struct {
	FPS           int             `json:"fps"`
	MemoryUsedMB  int             `json:"memoryUsedMB,omitempty"`
	MemoryTotalMB int             `json:"memoryTotalMB,omitempty"`
	LatencyMs     *int64          `json:"latencyMs,omitempty"`
	Alerts        []AlertCategory `json:"alerts"`
	SampledAt     time.Time       `json:"sampledAt"`
}

// PingMessage is the application-level latency probe sent while the
// connection is open.
type PingMessage struct {
	Type string `json:"type"`
}

// ConnState is the lifecycle state of the single logical connection to the
// event source.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
