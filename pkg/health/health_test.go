package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(msg string) Checker {
	return func(context.Context) error { return errors.New(msg) }
}

func probe(t *testing.T, h http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Timestamp.IsZero())
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("store", down("connection refused"))

	code, resp := probe(t, h.LivenessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name        string
		critical    map[string]Checker
		nonCritical map[string]Checker
		wantCode    int
		wantStatus  Status
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name:        "all up",
			critical:    map[string]Checker{"store": up},
			nonCritical: map[string]Checker{"kafka": up, "reset_webhook": up},
			wantCode:    http.StatusOK,
			wantStatus:  StatusUp,
		},
		{
			name:        "non-critical down degrades",
			critical:    map[string]Checker{"store": up},
			nonCritical: map[string]Checker{"kafka": down("broker unreachable"), "reset_webhook": down("circuit breaker open")},
			wantCode:    http.StatusOK,
			wantStatus:  StatusDegraded,
		},
		{
			name:        "critical down",
			critical:    map[string]Checker{"store": down("connection refused")},
			nonCritical: map[string]Checker{"kafka": up},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  StatusDown,
		},
		{
			name:        "critical down wins over degraded",
			critical:    map[string]Checker{"store": down("connection refused")},
			nonCritical: map[string]Checker{"kafka": down("broker unreachable")},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			for name, c := range tt.critical {
				h.RegisterCritical(name, c)
			}
			for name, c := range tt.nonCritical {
				h.RegisterNonCritical(name, c)
			}

			code, resp := probe(t, h.ReadinessHandler())

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.critical)+len(tt.nonCritical))
			for name := range tt.critical {
				assert.True(t, resp.Checks[name].Critical, name)
			}
			for name := range tt.nonCritical {
				assert.False(t, resp.Checks[name].Critical, name)
			}
		})
	}
}

func TestReadinessHandler_ReportsCheckError(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("kafka", down("broker unreachable"))

	_, resp := probe(t, h.ReadinessHandler())

	assert.Equal(t, CheckResult{Status: StatusDown, Error: "broker unreachable"}, resp.Checks["kafka"])
}

func TestRegister_IsCriticalAndReplaces(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("store", up)
	h.Register("store", down("fail"))

	code, resp := probe(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, resp.Checks["store"].Critical)
}

func TestReadinessHandler_RunsChecksConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	h := NewHandler()
	h.RegisterCritical("store", slow)
	h.RegisterNonCritical("kafka", slow)

	code, _ := probe(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int32(2), peak.Load())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, StatusUp, summarize(nil))
	assert.Equal(t, StatusDegraded, summarize(map[string]CheckResult{
		"kafka": {Status: StatusDown},
		"store": {Status: StatusUp, Critical: true},
	}))
	assert.Equal(t, StatusDown, summarize(map[string]CheckResult{
		"store": {Status: StatusDown, Critical: true},
	}))
}
