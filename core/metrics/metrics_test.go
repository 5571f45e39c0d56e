package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveUpdate("message")
	m.ObserveUpdate("message")
	m.ObserveOutcome("creating", "published")
	m.ObserveChannel("publish", "ok")
	m.ObserveRateLimited()
	m.ObserveHandler("fsm", "ok", 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.updates.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("creating", "published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.channelOps.WithLabelValues("publish", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimit))
}

func TestHandlerExposesSessions(t *testing.T) {
	m := New()
	m.TrackSessions(func() int { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "adboard_sessions_active 3"), body)
}

func TestNilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveUpdate("message")
	m.ObserveOutcome("editing", "applied")
	m.ObserveChannel("remove", "fail")
	m.ObserveRateLimited()
	m.ObserveHandler("x", "ok", time.Second)
	m.TrackSessions(func() int { return 1 })
	assert.Nil(t, m.Registry())
}
