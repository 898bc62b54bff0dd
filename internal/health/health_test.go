// SPDX-License-Identifier: MIT
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                      { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestHealthAlwaysOK(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(staticChecker{name: "mqtt", result: CheckResult{Status: StatusUnhealthy}})

	rr := httptest.NewRecorder()
	m.ServeHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	// Non-verbose liveness does not run component checks.
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestHealthVerboseIncludesChecks(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(staticChecker{name: "engine", result: CheckResult{Status: StatusHealthy}})

	rr := httptest.NewRecorder()
	m.ServeHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Checks, "engine")
}

func TestReadyAggregation(t *testing.T) {
	tests := []struct {
		name     string
		results  []CheckResult
		wantCode int
		want     Status
	}{
		{"all healthy", []CheckResult{{Status: StatusHealthy}}, http.StatusOK, StatusHealthy},
		{"degraded still ready", []CheckResult{{Status: StatusHealthy}, {Status: StatusDegraded}}, http.StatusOK, StatusDegraded},
		{"unhealthy wins", []CheckResult{{Status: StatusDegraded}, {Status: StatusUnhealthy}}, http.StatusServiceUnavailable, StatusUnhealthy},
		{"no checkers", nil, http.StatusOK, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for i, r := range tt.results {
				m.RegisterChecker(staticChecker{name: string(rune('a' + i)), result: r})
			}

			rr := httptest.NewRecorder()
			m.ServeReady(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tt.wantCode, rr.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

type fakeConn struct{ up bool }

func (f fakeConn) Connected() bool { return f.up }

func TestBrokerChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewBrokerChecker(fakeConn{up: true}).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewBrokerChecker(fakeConn{}).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewBrokerChecker(nil).Check(context.Background()).Status)
}

type fakeEngine struct {
	err error
	n   int
}

func (f fakeEngine) Ping(context.Context) error       { return f.err }
func (f fakeEngine) Len(context.Context) (int, error) { return f.n, f.err }

func TestEngineChecker(t *testing.T) {
	res := NewEngineChecker(fakeEngine{n: 3}).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "loop responsive, 3 live events", res.Message)

	res = NewEngineChecker(fakeEngine{err: errors.New("loop stuck")}).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "loop stuck", res.Error)

	res = NewEngineChecker(nil).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}
