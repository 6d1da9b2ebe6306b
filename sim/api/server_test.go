package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/market-sim/sim"
)

func newTestSimulator(t *testing.T) *sim.Simulator {
	t.Helper()
	cfg := sim.DefaultConfig()
	cfg.Run.TickCount = 10
	s, err := sim.NewSimulator(cfg, nil)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProducts_ActiveFilter(t *testing.T) {
	// GIVEN a simulation with one product deactivated
	s := newTestSimulator(t)
	all := s.ListProducts(false)
	require.NotEmpty(t, all)
	_, err := s.Store().SetActive(all[0].ID, false)
	require.NoError(t, err)
	h := (&Server{Sim: s}).Handler()

	// WHEN products are listed with and without the filter
	recAll := do(t, h, http.MethodGet, "/products")
	recActive := do(t, h, http.MethodGet, "/products?active=true")

	// THEN the filtered list omits the inactive product
	require.Equal(t, http.StatusOK, recAll.Code)
	require.Equal(t, http.StatusOK, recActive.Code)
	var gotAll, gotActive []sim.Product
	require.NoError(t, json.Unmarshal(recAll.Body.Bytes(), &gotAll))
	require.NoError(t, json.Unmarshal(recActive.Body.Bytes(), &gotActive))
	assert.Len(t, gotAll, len(all))
	assert.Len(t, gotActive, len(all)-1)
	for _, p := range gotActive {
		assert.True(t, p.Active)
		assert.NotEqual(t, all[0].ID, p.ID)
	}
}

func TestProducts_BadActiveParam_BadRequest(t *testing.T) {
	h := (&Server{Sim: newTestSimulator(t)}).Handler()
	rec := do(t, h, http.MethodGet, "/products?active=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshots_ReturnEntities(t *testing.T) {
	s := newTestSimulator(t)
	h := (&Server{Sim: s}).Handler()

	var suppliers []sim.Supplier
	rec := do(t, h, http.MethodGet, "/suppliers")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suppliers))
	assert.Len(t, suppliers, s.Config().Generation.Suppliers)

	var companies []sim.Company
	rec = do(t, h, http.MethodGet, "/companies")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	assert.Len(t, companies, s.Config().Generation.Companies)

	rec = do(t, h, http.MethodGet, "/inflation")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTickAndSummary_AfterRun(t *testing.T) {
	// GIVEN a simulation that ran to completion
	s := newTestSimulator(t)
	require.NoError(t, s.Run(context.Background()))
	h := (&Server{Sim: s}).Handler()

	// WHEN tick and summary are requested
	rec := do(t, h, http.MethodGet, "/tick")
	require.Equal(t, http.StatusOK, rec.Code)
	var tick struct {
		Tick  int64        `json:"tick"`
		State sim.SimState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tick))

	rec = do(t, h, http.MethodGet, "/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary sim.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))

	// THEN both reflect the finished run
	assert.Equal(t, int64(10), tick.Tick)
	assert.Equal(t, sim.StateStopped, tick.State)
	assert.Equal(t, int64(10), summary.Tick)
	assert.Equal(t, s.RunSummary().Transactions, summary.Transactions)
}

func TestReset_ReturnsToIdle(t *testing.T) {
	s := newTestSimulator(t)
	require.NoError(t, s.Run(context.Background()))
	h := (&Server{Sim: s}).Handler()

	rec := do(t, h, http.MethodPost, "/reset")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), s.CurrentTick())
	assert.Equal(t, sim.StateIdle, s.State())
}

type runningSim struct {
	*sim.Simulator
	stopped bool
}

func (r *runningSim) State() sim.SimState { return sim.StateRunning }
func (r *runningSim) Reset() error        { return sim.ErrSimulationRunning }
func (r *runningSim) Stop()               { r.stopped = true }

func TestReset_WhileRunning_Conflict(t *testing.T) {
	h := (&Server{Sim: &runningSim{Simulator: newTestSimulator(t)}}).Handler()

	rec := do(t, h, http.MethodPost, "/reset")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStop_ForwardsToSimulation(t *testing.T) {
	rs := &runningSim{Simulator: newTestSimulator(t)}
	h := (&Server{Sim: rs}).Handler()

	rec := do(t, h, http.MethodPost, "/stop")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, rs.stopped)
}

func TestMethodNotAllowed(t *testing.T) {
	h := (&Server{Sim: newTestSimulator(t)}).Handler()
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/products").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/stop").Code)
}

func TestRequestID_GeneratedOrEchoed(t *testing.T) {
	h := (&Server{Sim: newTestSimulator(t)}).Handler()

	// GIVEN no incoming ID, one is minted
	rec := do(t, h, http.MethodGet, "/tick")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	// GIVEN an incoming ID, it is echoed
	req := httptest.NewRequest(http.MethodGet, "/tick", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := &Server{Sim: newTestSimulator(t), Addr: "127.0.0.1:0"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	cancel()

	assert.NoError(t, <-done)
}
