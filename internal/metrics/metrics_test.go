package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	m := New()
	m.SetPeers(3)
	m.FramesRelayed(4)
	m.FramesRelayed(0)
	m.MessageRelayed("unicast")
	m.MessageRelayed("unicast")
	m.Disconnected("pong_timeout")
	m.SessionsReaped(2)
	m.Login("connected")

	if got := testutil.ToFloat64(m.peers); got != 3 {
		t.Fatalf("peers gauge: got %v", got)
	}
	if got := testutil.ToFloat64(m.frames); got != 4 {
		t.Fatalf("frames counter: got %v", got)
	}
	if got := testutil.ToFloat64(m.messages.WithLabelValues("unicast")); got != 2 {
		t.Fatalf("unicast counter: got %v", got)
	}
	if got := testutil.ToFloat64(m.reaped); got != 2 {
		t.Fatalf("reaped counter: got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SetPeers(1)
	m.FramesRelayed(1)
	m.MessageRelayed("broadcast")
	m.Disconnected("closed")
	m.Login("invalid_user")
	m.BackpressureDrop()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetSessions(1)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tocata_sessions_active 1") {
		t.Fatalf("sessions gauge missing from output")
	}
}
