package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/svirmi/sitewatch/internal/models"
)

// ErrMalformed marks inbound payloads that fail to decode. The offending
// message is dropped and counted; the stream keeps going.
var ErrMalformed = errors.New("malformed message")

type Kind int

const (
	KindUnknown Kind = iota
	KindMetricEvent
	KindPong
)

// Inbound is one decoded frame from the event source: either a metric
// event payload or a control reply.
type Inbound struct {
	Kind  Kind
	Event *models.MetricEvent
}

type Stats struct {
	DecodedCount   int64
	MalformedCount int64
	LastError      string
	LastErrorTime  time.Time
}

// Decoder turns raw frames into Inbound messages and keeps running
// accounting of decode failures.
type Decoder struct {
	maxMessageSize int64

	mu    sync.Mutex
	stats Stats
}

func NewDecoder(maxMessageSize int64) *Decoder {
	return &Decoder{maxMessageSize: maxMessageSize}
}

// envelope probes just enough of the frame to route it.
type envelope struct {
	Type   string `json:"type"`
	SiteID string `json:"siteId"`
}

func (d *Decoder) Decode(data []byte) (*Inbound, error) {
	if int64(len(data)) > d.maxMessageSize {
		return nil, d.malformed(fmt.Errorf("%w: size %d exceeds limit %d", ErrMalformed, len(data), d.maxMessageSize))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, d.malformed(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	switch env.Type {
	case "pong":
		d.decoded()
		return &Inbound{Kind: KindPong}, nil
	case "":
		// No control type: expect a metric event payload.
	default:
		return nil, d.malformed(fmt.Errorf("%w: unsupported message type %q", ErrMalformed, env.Type))
	}

	var event models.MetricEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, d.malformed(fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if event.SiteID == "" {
		return nil, d.malformed(fmt.Errorf("%w: missing siteId", ErrMalformed))
	}

	d.decoded()
	return &Inbound{Kind: KindMetricEvent, Event: &event}, nil
}

func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Decoder) decoded() {
	d.mu.Lock()
	d.stats.DecodedCount++
	d.mu.Unlock()
}

func (d *Decoder) malformed(err error) error {
	d.mu.Lock()
	d.stats.MalformedCount++
	d.stats.LastError = err.Error()
	d.stats.LastErrorTime = time.Now()
	d.mu.Unlock()
	return err
}
