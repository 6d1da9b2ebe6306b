// Package api serves read-only snapshots of a running market simulation over
// HTTP, plus stop and reset control.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/market-sim/sim"
)

// Simulation is the subset of *sim.Simulator the API needs.
type Simulation interface {
	ListProducts(activeOnly bool) []sim.Product
	ListSuppliers() []sim.Supplier
	ListCompanies() []sim.Company
	InflationTimers() map[sim.ProductID]sim.InflationTimer
	CurrentTick() int64
	State() sim.SimState
	RunSummary() sim.RunSummary
	Stop()
	Reset() error
}

// Server serves the simulation state over HTTP.
type Server struct {
	Sim  Simulation
	Addr string // listen address, e.g. ":8080"
}

// Handler returns the routed handler wrapped in request-ID and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Snapshots.
	mux.HandleFunc("GET /products", s.handleProducts)
	mux.HandleFunc("GET /suppliers", s.handleSuppliers)
	mux.HandleFunc("GET /companies", s.handleCompanies)
	mux.HandleFunc("GET /inflation", s.handleInflation)
	mux.HandleFunc("GET /tick", s.handleTick)
	mux.HandleFunc("GET /summary", s.handleSummary)

	// Control.
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /reset", s.handleReset)

	return withRequestID(withLogging(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("HTTP API listening on %s", s.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = b
	}
	writeJSON(w, http.StatusOK, s.Sim.ListProducts(activeOnly))
}

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.ListSuppliers())
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.ListCompanies())
}

func (s *Server) handleInflation(w http.ResponseWriter, r *http.Request) {
	timers := s.Sim.InflationTimers()
	out := make([]sim.InflationTimer, 0, len(timers))
	for _, t := range timers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":  s.Sim.CurrentTick(),
		"state": s.Sim.State(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.RunSummary())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Sim.Stop()
	logrus.WithField("request_id", RequestIDFromContext(r.Context())).Info("stop requested over HTTP")
	writeJSON(w, http.StatusAccepted, map[string]any{"state": s.Sim.State()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.Reset(); err != nil {
		if errors.Is(err, sim.ErrSimulationRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":  s.Sim.CurrentTick(),
		"state": s.Sim.State(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		logrus.Warnf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
