package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/db"
	"github.com/restrack/restrack-ai/internal/middleware"
	"github.com/restrack/restrack-ai/internal/models"
)

// ─── Health ──────────────────────────────────────────────────────────────────

// handleHealth: GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "restrack-ai",
		"version": s.config.Version,
	})
}

// handleReady: GET /ready
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"websocket_clients": s.hub.ClientCount(),
	})
}

// ─── Analysis ────────────────────────────────────────────────────────────────

// runRequest is the optional body of POST /api/v1/analysis/run.
type runRequest struct {
	// Now anchors the analysis window; defaults to the current time.
	Now *time.Time `json:"now,omitempty"`
}

// datasetRequest is the body of the endpoints that analyse a posted dataset.
type datasetRequest struct {
	Now     *time.Time      `json:"now,omitempty"`
	Dataset *models.Dataset `json:"dataset"`
}

// handleRunAnalysis: POST /api/v1/analysis/run
func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := s.decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	opts := analytics.RunOptions{
		Trigger:  analytics.TriggerAPI,
		SourceIP: middleware.ClientIP(r),
	}
	if req.Now != nil {
		opts.Now = *req.Now
	}

	a, err := s.pipeline.Run(r.Context(), opts)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleEvaluate: POST /api/v1/analysis/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ds, now, ok := s.readDataset(w, r)
	if !ok {
		return
	}
	a, err := s.pipeline.Evaluate(r.Context(), ds, now)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleKitchens: POST /api/v1/analysis/kitchens
func (s *Server) handleKitchens(w http.ResponseWriter, r *http.Request) {
	ds, now, ok := s.readDataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kitchenAnomalies": s.pipeline.Engine().DetectKitchenConsumptionAnomalies(ds, now),
	})
}

// handleDisposals: POST /api/v1/analysis/disposals
func (s *Server) handleDisposals(w http.ResponseWriter, r *http.Request) {
	ds, now, ok := s.readDataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assetDisposals": s.pipeline.Engine().AnalyzeAssetDisposals(ds, now),
	})
}

// handleLocations: POST /api/v1/analysis/locations
func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	ds, now, ok := s.readDataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"locationOverpurchasing": s.pipeline.Engine().DetectLocationOverpurchasing(ds, now),
	})
}

// ─── Run history ─────────────────────────────────────────────────────────────

// handleListRuns: GET /api/v1/analysis/runs
//
//	Query params:
//	  limit: max results (default 50, max 500)
//	  offset: rows to skip
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.store.ListAnalyses(r.Context(), limit, offset)
	if err != nil {
		s.internalError(w, r, "list analyses", err)
		return
	}
	if runs == nil {
		runs = []*db.AnalysisRunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetRun: GET /api/v1/analysis/runs/{id}
//
// Responds with the stored analysis document.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.store.GetAnalysis(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("analysis %q not found", id))
		return
	}
	if err != nil {
		s.internalError(w, r, "get analysis", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(run.Report)
}

// ─── Anomaly events ──────────────────────────────────────────────────────────

var detectors = map[string]bool{
	db.DetectorConsumption: true,
	db.DetectorKitchen:     true,
	db.DetectorDisposal:    true,
	db.DetectorLocation:    true,
}

var severities = map[string]bool{"low": true, "medium": true, "high": true}

// handleAnomalyEvents: GET /api/v1/anomalies/events
//
//	Query params:
//	  detector: consumption | kitchen | disposal | location
//	  severity: low | medium | high
//	  run_id: events of one run
//	  from, to: RFC 3339 or YYYY-MM-DD bounds on detection time
//	  limit, offset
func (s *Server) handleAnomalyEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := db.AnomalyQuery{
		RunID:    q.Get("run_id"),
		Detector: q.Get("detector"),
		Severity: q.Get("severity"),
	}
	if query.Detector != "" && !detectors[query.Detector] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown detector %q", query.Detector))
		return
	}
	if query.Severity != "" && !severities[query.Severity] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown severity %q", query.Severity))
		return
	}
	var err error
	if query.From, query.To, err = timeRange(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Limit, query.Offset, err = pagination(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.store.ListAnomalyEvents(r.Context(), query)
	if err != nil {
		s.internalError(w, r, "list anomaly events", err)
		return
	}
	if events == nil {
		events = []*db.AnomalyEventRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}

// handleAnomalySummary: GET /api/v1/anomalies/summary
func (s *Server) handleAnomalySummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := s.store.AnomalySummary(r.Context(), from, to)
	if err != nil {
		s.internalError(w, r, "anomaly summary", err)
		return
	}
	total := 0
	for _, n := range summary {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bySeverity": summary,
		"total":      total,
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) readDataset(w http.ResponseWriter, r *http.Request) (*models.Dataset, time.Time, bool) {
	var req datasetRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, time.Time{}, false
	}
	if req.Dataset == nil {
		writeError(w, http.StatusBadRequest, "dataset is required")
		return nil, time.Time{}, false
	}
	now := time.Now().UTC()
	if req.Now != nil {
		now = req.Now.UTC()
	}
	return req.Dataset, now, true
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, analytics.ErrAnalysisTimeout) {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	s.internalError(w, r, "analysis", err)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log.Error("Request failed",
		zap.String("operation", op),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit = 50
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
		limit = min(n, 500)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
		offset = n
	}
	return limit, offset, nil
}

func timeRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if from, err = parseQueryTime(q.Get("from")); err != nil {
		return
	}
	if to, err = parseQueryTime(q.Get("to")); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = errors.New("to must not be before from")
	}
	return
}

func parseQueryTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339 or YYYY-MM-DD)", v)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
