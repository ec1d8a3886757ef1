package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleEvent = `{
	"siteId": "site-42",
	"siteName": "Shop",
	"timestamp": "2026-08-29T10:00:00Z",
	"pageViews": 1200,
	"uniqueVisitors": 340,
	"bounceRate": 41.5,
	"avgSessionDuration": 95.2,
	"topPages": [{"path": "/", "views": 600}, {"path": "/cart", "views": 150}],
	"performanceMetrics": {
		"loadTime": 850.5,
		"firstContentfulPaint": 420.1,
		"largestContentfulPaint": 1310.9
	},
	"userFlow": [{"from": "/", "to": "/cart", "count": 80}]
}`

func TestDecodeMetricEvent(t *testing.T) {
	d := NewDecoder(64 * 1024)

	inbound, err := d.Decode([]byte(sampleEvent))
	require.NoError(t, err)
	require.Equal(t, KindMetricEvent, inbound.Kind)

	ev := inbound.Event
	require.Equal(t, "site-42", ev.SiteID)
	require.Equal(t, "Shop", ev.SiteName)
	require.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), ev.Timestamp)
	require.Equal(t, int64(1200), ev.PageViews)
	require.Equal(t, int64(340), ev.UniqueVisitors)
	require.InDelta(t, 41.5, ev.BounceRate, 1e-9)
	require.Len(t, ev.TopPages, 2)
	require.Equal(t, "/cart", ev.TopPages[1].Path)
	require.InDelta(t, 1310.9, ev.PerformanceMetrics.LargestContentfulPaint, 1e-9)
	require.Len(t, ev.UserFlow, 1)

	require.Equal(t, int64(1), d.Stats().DecodedCount)
}

func TestDecodePong(t *testing.T) {
	d := NewDecoder(1024)

	inbound, err := d.Decode([]byte(`{"type":"pong"}`))
	require.NoError(t, err)
	require.Equal(t, KindPong, inbound.Kind)
	require.Nil(t, inbound.Event)
}

func TestMalformedPayloadsAreCountedNotFatal(t *testing.T) {
	d := NewDecoder(1024)

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"siteId": }`),
		[]byte(`{"timestamp": "2026-08-29T10:00:00Z"}`), // missing siteId
		[]byte(`{"type": "shrug"}`),                     // unsupported control
		[]byte(``),
		[]byte(`[1,2,3]`),
		{0xff, 0xfe, 0x00},
	}
	for _, payload := range cases {
		inbound, err := d.Decode(payload)
		require.ErrorIs(t, err, ErrMalformed, "payload %q", payload)
		require.Nil(t, inbound)
	}

	stats := d.Stats()
	require.Equal(t, int64(len(cases)), stats.MalformedCount)
	require.Zero(t, stats.DecodedCount)
	require.NotEmpty(t, stats.LastError)
}

func TestOversizedPayloadRejected(t *testing.T) {
	d := NewDecoder(16)

	_, err := d.Decode([]byte(sampleEvent))
	require.ErrorIs(t, err, ErrMalformed)
	require.Equal(t, int64(1), d.Stats().MalformedCount)
}
