package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kyofin/kessan/internal/common"
	"github.com/kyofin/kessan/internal/models"
	"github.com/kyofin/kessan/internal/services/analysis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if ts := s.master.RefreshedAt(); !ts.IsZero() {
		body["masterRefreshedAt"] = ts.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":   common.Version,
		"buildTime": common.BuildTime,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	results, err := s.master.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "instrument search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// handleAnalyze serves the synchronous analysis. ?use_cache=false bypasses
// the cached result for this request without discarding it.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	useCache := r.URL.Query().Get("use_cache") != "false"

	result, err := s.analysis.Analyze(r.Context(), code, useCache)
	if err != nil {
		if analysis.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Str("code", code).Err(err).Msg("analysis request failed")
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeStream serves the analysis as server-sent events: one
// "progress" event per stage, then a terminal "complete" or "app-error".
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	code := r.PathValue("code")
	snapshots, err := s.analysis.AnalyzeStream(r.Context(), code)
	if err != nil {
		if analysis.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snap := range snapshots {
		event := "progress"
		switch snap.Status {
		case models.StatusComplete:
			event = "complete"
		case models.StatusError:
			event = "app-error"
		}
		writeSSE(w, event, snap)
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if err := s.analysis.ClearCache(r.Context(), code); err != nil {
		if analysis.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "code": models.NormalizeCode(code)})
}
