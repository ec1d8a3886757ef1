package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/svirmi/sitewatch/internal/alerts"
	"github.com/svirmi/sitewatch/internal/logger"
	"github.com/svirmi/sitewatch/internal/models"
)

var log zerolog.Logger

func init() {
	log = logger.GetLogger("telemetry")
}

// Pinger sends an application-level latency probe and reports whether one
// actually went out (nothing is sent while the connection is down).
type Pinger interface {
	SendPing() bool
}

type Options struct {
	FPSWindow      time.Duration
	MemoryInterval time.Duration
	PingInterval   time.Duration

	Pinger Pinger
	Memory MemoryReader

	// Publish receives every superseding sample. Optional.
	Publish func(models.TelemetrySample)
}

// Monitor runs the three samplers (frame cadence, memory footprint,
// round-trip latency) against one shared telemetry sample. Each sampler
// writes only its own fields, so concurrent updates never clobber each
// other, and every write re-evaluates the alert rules.
type Monitor struct {
	opts   Options
	engine *alerts.Engine
	now    func() time.Time

	mu          sync.Mutex
	frames      int
	sample      models.TelemetrySample
	fpsKnown    bool
	memKnown    bool
	pendingPing time.Time
	stalePongs  int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewMonitor(opts Options, engine *alerts.Engine) *Monitor {
	if opts.FPSWindow <= 0 {
		opts.FPSWindow = time.Second
	}
	if opts.MemoryInterval <= 0 {
		opts.MemoryInterval = 3 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 5 * time.Second
	}
	if opts.Memory == nil {
		opts.Memory = RuntimeMemoryReader{}
	}
	if engine == nil {
		engine = alerts.NewEngine(alerts.DefaultThresholds(), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		opts:   opts,
		engine: engine,
		now:    time.Now,
		sample: models.TelemetrySample{Alerts: []models.AlertCategory{}},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the three sampling loops. Calling it again has no effect.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(3)
		go m.loop(m.opts.FPSWindow, m.tickFPS)
		go m.loop(m.opts.MemoryInterval, m.sampleMemory)
		go m.loop(m.opts.PingInterval, m.probeLatency)
		log.Info().
			Dur("fps_window", m.opts.FPSWindow).
			Dur("memory_interval", m.opts.MemoryInterval).
			Dur("ping_interval", m.opts.PingInterval).
			Msg("Telemetry monitor started")
	})
}

// Stop cancels every sampling loop exactly once; a second Stop is a no-op.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
		log.Info().Msg("Telemetry monitor stopped")
	})
}

func (m *Monitor) loop(interval time.Duration, fn func()) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// FrameTick counts one scheduled-render callback. The presentation layer
// calls it once per rendered frame.
func (m *Monitor) FrameTick() {
	m.mu.Lock()
	m.frames++
	m.mu.Unlock()
}

// HandlePong resolves the outstanding latency probe, if any. A pong with no
// pending ping is counted and ignored.
func (m *Monitor) HandlePong() {
	m.mu.Lock()
	if m.pendingPing.IsZero() {
		m.stalePongs++
		m.mu.Unlock()
		return
	}
	latency := m.now().Sub(m.pendingPing).Milliseconds()
	m.pendingPing = time.Time{}
	m.sample.LatencyMs = &latency
	sample := m.reevaluateLocked()
	m.mu.Unlock()

	m.publishSample(sample)
}

// Sample returns a copy of the current telemetry reading.
func (m *Monitor) Sample() models.TelemetrySample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySample(m.sample)
}

// StalePongs reports how many pongs arrived with no probe outstanding.
func (m *Monitor) StalePongs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stalePongs
}

// tickFPS publishes the frame count observed over the last window and
// resets the counter.
func (m *Monitor) tickFPS() {
	m.mu.Lock()
	m.sample.FPS = m.frames
	m.frames = 0
	m.fpsKnown = true
	sample := m.reevaluateLocked()
	m.mu.Unlock()

	m.publishSample(sample)
}

// sampleMemory reads the host heap capability. When unavailable the
// previous values stand and nothing is re-evaluated.
func (m *Monitor) sampleMemory() {
	reading, ok := m.opts.Memory.Read()
	if !ok {
		return
	}

	m.mu.Lock()
	m.sample.MemoryUsedMB = reading.UsedMB
	m.sample.MemoryTotalMB = reading.TotalMB
	m.memKnown = true
	sample := m.reevaluateLocked()
	m.mu.Unlock()

	m.publishSample(sample)
}

// probeLatency sends a ping while the connection is open and stamps the
// send time. A probe due while one is outstanding overwrites the stamp:
// the stale measurement is abandoned, never queued.
func (m *Monitor) probeLatency() {
	if m.opts.Pinger == nil {
		return
	}
	if !m.opts.Pinger.SendPing() {
		return
	}

	m.mu.Lock()
	m.pendingPing = m.now()
	m.mu.Unlock()
}

func (m *Monitor) reevaluateLocked() models.TelemetrySample {
	signals := alerts.Signals{
		FPS:          m.sample.FPS,
		FPSKnown:     m.fpsKnown,
		MemoryUsedMB: m.sample.MemoryUsedMB,
		MemoryKnown:  m.memKnown,
	}
	if m.sample.LatencyMs != nil {
		signals.LatencyMs = *m.sample.LatencyMs
		signals.LatencyKnown = true
	}
	m.sample.Alerts = m.engine.Evaluate(signals)
	m.sample.SampledAt = m.now()
	return copySample(m.sample)
}

func (m *Monitor) publishSample(sample models.TelemetrySample) {
	if m.opts.Publish != nil {
		m.opts.Publish(sample)
	}
}

func copySample(s models.TelemetrySample) models.TelemetrySample {
	out := s
	out.Alerts = append([]models.AlertCategory(nil), s.Alerts...)
	if s.LatencyMs != nil {
		latency := *s.LatencyMs
		out.LatencyMs = &latency
	}
	return out
}
