package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")

	for _, name := range []string{Connections, MessagesCreated, UploadsInitialised, UploadsCompleted, UploadsRejected} {
		assert.NotNilf(t, su.vars.Get(name), "expected metric %s to be registered", name)
	}
}

func TestIncrDecr(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.Run()
	t.Cleanup(su.Stop)

	su.Incr(Connections)
	su.Incr(Connections)
	su.Decr(Connections)
	su.Incr(MessagesCreated)
	su.Incr("Unknown")

	assert.Eventually(t, func() bool {
		return su.vars.Get(Connections).(*expvar.Int).Value() == 1 &&
			su.vars.Get(MessagesCreated).(*expvar.Int).Value() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestExpvarHandler(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.vars.Get(UploadsCompleted).(*expvar.Int).Add(3)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body[UploadsCompleted])
	assert.Contains(t, body, "Uptime")
}
