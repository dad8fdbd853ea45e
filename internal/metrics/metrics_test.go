package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOracle(t *testing.T) {
	m := New()

	m.ObserveOracle("gemini", "ACTION", 200*time.Millisecond, nil)
	m.ObserveOracle("gemini", "ACTION", time.Second, errors.New("boom"))
	m.ObserveOracle("gemini", "PERCEPTION", time.Second, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleRequests.WithLabelValues("gemini", "ACTION", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleRequests.WithLabelValues("gemini", "ACTION", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleRequests.WithLabelValues("gemini", "PERCEPTION", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OracleDuration))
}

func TestObserveTick(t *testing.T) {
	m := New()

	m.ObserveTick(time.Second, false, "", "")
	m.ObserveTick(time.Second, true, "oracle", "planning")
	m.ObserveTick(time.Second, true, "oracle", "planning")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TickFailures.WithLabelValues("oracle", "planning")))
}

func TestCountersAndGauges(t *testing.T) {
	m := New()

	m.ObserveButtons([]string{"UP", "UP", "A"})
	m.ObserveFallback("battle")
	m.ObservePlanCreated()
	m.ObserveDropped(3)
	m.ObserveDropped(0)
	m.SetContextSizes(40, 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ButtonsTotal.WithLabelValues("UP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ButtonsTotal.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackActions.WithLabelValues("battle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanReplacements))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DroppedTokens))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.ActionHistorySize))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.MemoryEntries))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveOracle("x", "y", time.Second, nil)
		m.ObserveTick(time.Second, true, "internal", "action")
		m.ObserveButtons([]string{"A"})
		m.ObserveFallback("default")
		m.ObservePlanCreated()
		m.ObserveDropped(1)
		m.SetContextSizes(1, 1)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObservePlanCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pokeagent_plan_replacements_total 1")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_BadAddress(t *testing.T) {
	err := New().Serve(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not-an-address") || strings.Contains(err.Error(), "missing port"))
}
