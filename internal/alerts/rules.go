package alerts

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/svirmi/sitewatch/internal/logger"
	"github.com/svirmi/sitewatch/internal/models"
)

var log zerolog.Logger

func init() {
	log = logger.GetLogger("alerts")
}

type Thresholds struct {
	MinFPS       int
	MaxMemoryMB  int
	MaxLatencyMs int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinFPS: 30, MaxMemoryMB: 400, MaxLatencyMs: 200}
}

// Signals are the latest telemetry readings. A field with its Known flag
// unset contributes no alert either way (capability absent or never
// measured), it is not an error.
type Signals struct {
	FPS          int
	FPSKnown     bool
	MemoryUsedMB int
	MemoryKnown  bool
	LatencyMs    int64
	LatencyKnown bool
}

// Engine evaluates the alert rules against the freshest signals. Every
// evaluation asserts or retracts each category independently, so an alert
// never outlives the reading that produced it. Category order is stable.
type Engine struct {
	thresholds Thresholds
	journal    *Journal
	now        func() time.Time

	mu     sync.Mutex
	active map[models.AlertCategory]bool
}

func NewEngine(thresholds Thresholds, journal *Journal) *Engine {
	if thresholds.MinFPS <= 0 && thresholds.MaxMemoryMB <= 0 && thresholds.MaxLatencyMs <= 0 {
		thresholds = DefaultThresholds()
	}
	return &Engine{
		thresholds: thresholds,
		journal:    journal,
		now:        time.Now,
		active:     make(map[models.AlertCategory]bool),
	}
}

// Evaluate recomputes the full alert set from the given signals.
func (e *Engine) Evaluate(s Signals) []models.AlertCategory {
	alerts := make([]models.AlertCategory, 0, 3)
	if s.FPSKnown && s.FPS < e.thresholds.MinFPS {
		alerts = append(alerts, models.AlertLowFPS)
	}
	if s.MemoryKnown && s.MemoryUsedMB > e.thresholds.MaxMemoryMB {
		alerts = append(alerts, models.AlertHighMemory)
	}
	if s.LatencyKnown && s.LatencyMs > e.thresholds.MaxLatencyMs {
		alerts = append(alerts, models.AlertHighLatency)
	}

	e.recordTransitions(alerts)
	return alerts
}

// Active reports the categories asserted by the most recent evaluation.
func (e *Engine) Active() []models.AlertCategory {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := make([]models.AlertCategory, 0, len(e.active))
	for _, category := range orderedCategories {
		if e.active[category] {
			active = append(active, category)
		}
	}
	return active
}

var orderedCategories = []models.AlertCategory{
	models.AlertLowFPS,
	models.AlertHighMemory,
	models.AlertHighLatency,
}

func (e *Engine) recordTransitions(alerts []models.AlertCategory) {
	asserted := make(map[models.AlertCategory]bool, len(alerts))
	for _, category := range alerts {
		asserted[category] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for _, category := range orderedCategories {
		was := e.active[category]
		is := asserted[category]
		if was == is {
			continue
		}
		e.active[category] = is

		action := "raised"
		if !is {
			action = "cleared"
		}
		log.Info().
			Str("category", string(category)).
			Str("action", action).
			Msg("Alert transition")

		if e.journal != nil {
			// Journal failures never block evaluation.
			if err := e.journal.Record(category, action, now); err != nil {
				log.Warn().Err(err).Str("category", string(category)).Msg("Journal write failed")
			}
		}
	}
}
