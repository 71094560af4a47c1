package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux, "gossip-stats-test-new")
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdater_IncrDecr(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux, "gossip-stats-test-incr")
	su.RegisterMetric(NumActiveConnections)
	su.Run()

	su.Incr(NumActiveConnections)
	su.Incr(NumActiveConnections)
	su.Decr(NumActiveConnections)
	su.Incr(NumPersistFailures)
	su.Stop()
	su.Stop()

	read := func() map[string]any {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
		var out map[string]any
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
		return out
	}

	assert.Eventually(t, func() bool {
		vars := read()
		return vars[NumActiveConnections] == float64(1) && vars[NumPersistFailures] == float64(1)
	}, time.Second, 10*time.Millisecond, "expected metrics to reflect updates")

	vars := read()
	assert.Contains(t, vars, "Uptime", "expected uptime metric")
}
