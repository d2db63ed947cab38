package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/go-chi/chi/v5"

	"github.com/demxyuanli/selfa-indicators/internal/engine"
	"github.com/demxyuanli/selfa-indicators/internal/indicator"
)

const engineTimeout = 5 * time.Second

// indicatorRequest is the JSON body for create/update operations.
type indicatorRequest struct {
	Name      string `json:"name"`
	Formula   string `json:"formula"`
	Color     string `json:"color"`
	LineWidth int    `json:"line_width"`
}

// Response helpers
func (a *APIActor) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (a *APIActor) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps engine errors to HTTP responses. Formula
// compile errors carry their kind so the editor can show the specific
// validation failure inline.
func (a *APIActor) writeEngineError(w http.ResponseWriter, err error) {
	var ferr *indicator.FormulaError
	if errors.As(err, &ferr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": ferr.Message,
			"kind":  ferr.Kind,
		})
		return
	}
	if errors.Is(err, indicator.ErrNotFound) {
		a.writeError(w, "indicator not found", http.StatusNotFound)
		return
	}
	a.writeError(w, err.Error(), http.StatusBadRequest)
}

func (a *APIActor) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (a *APIActor) handleListIndicators(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, err := ctx.Request(a.enginePID, engine.ListIndicatorsMsg{}, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		list, ok := response.(engine.ListResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}

		defs := list.Definitions
		if defs == nil {
			defs = []indicator.Definition{}
		}
		a.writeJSON(w, map[string]interface{}{"indicators": defs})
	}
}

func (a *APIActor) handleCreateIndicator(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req indicatorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Formula == "" {
			a.writeError(w, "name and formula are required", http.StatusBadRequest)
			return
		}

		msg := engine.AddIndicatorMsg{
			Name:      req.Name,
			Formula:   req.Formula,
			Color:     req.Color,
			LineWidth: req.LineWidth,
		}
		response, err := ctx.Request(a.enginePID, msg, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		result, ok := response.(engine.IndicatorResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		if result.Err != nil {
			a.writeEngineError(w, result.Err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(result.Definition)
	}
}

func (a *APIActor) handleUpdateIndicator(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req indicatorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		msg := engine.UpdateIndicatorMsg{
			ID:        chi.URLParam(r, "id"),
			Name:      req.Name,
			Formula:   req.Formula,
			Color:     req.Color,
			LineWidth: req.LineWidth,
		}
		response, err := ctx.Request(a.enginePID, msg, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		result, ok := response.(engine.IndicatorResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		if result.Err != nil {
			a.writeEngineError(w, result.Err)
			return
		}

		a.writeJSON(w, result.Definition)
	}
}

func (a *APIActor) handleDeleteIndicator(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := engine.RemoveIndicatorMsg{ID: chi.URLParam(r, "id")}
		response, err := ctx.Request(a.enginePID, msg, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		ack, ok := response.(engine.AckResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		if ack.Err != nil {
			a.writeEngineError(w, ack.Err)
			return
		}

		a.writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func (a *APIActor) handleGetSeries(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := engine.GetSeriesMsg{ID: chi.URLParam(r, "id")}
		response, err := ctx.Request(a.enginePID, msg, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		result, ok := response.(engine.SeriesResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		if result.Err != nil {
			a.writeEngineError(w, result.Err)
			return
		}

		dates := make([]time.Time, len(result.Bars))
		for i, b := range result.Bars {
			dates[i] = b.Date
		}

		a.writeJSON(w, map[string]interface{}{
			"dates":  dates,
			"values": result.Series,
		})
	}
}

func (a *APIActor) handleGetAnalysis(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := engine.GetAnalysisMsg{ID: chi.URLParam(r, "id")}
		response, err := ctx.Request(a.enginePID, msg, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		result, ok := response.(engine.AnalysisResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		if result.Err != nil {
			a.writeEngineError(w, result.Err)
			return
		}

		if result.Diagnostic != nil {
			a.writeJSON(w, map[string]interface{}{"diagnostic": result.Diagnostic})
			return
		}
		a.writeJSON(w, map[string]interface{}{"analysis": result.Analysis})
	}
}

func (a *APIActor) handleSetBars(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Symbol   string          `json:"symbol"`
			Interval string          `json:"interval"`
			Bars     []indicator.Bar `json:"bars"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		msg := engine.SetBarsMsg{Symbol: req.Symbol, Interval: req.Interval, Bars: req.Bars}
		response, err := ctx.Request(a.enginePID, msg, engineTimeout).Result()
		if err != nil {
			a.writeError(w, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		ack, ok := response.(engine.AckResponse)
		if !ok {
			a.writeError(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		if ack.Err != nil {
			a.writeError(w, ack.Err.Error(), http.StatusBadRequest)
			return
		}

		a.writeJSON(w, map[string]interface{}{
			"status": "ok",
			"bars":   len(req.Bars),
		})
	}
}

func (a *APIActor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	a.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection established")

	a.wsMu.Lock()
	a.wsClients[conn] = true
	a.wsMu.Unlock()

	// Drain client messages; the connection is push-only and closes
	// when the client goes away.
	go func() {
		defer func() {
			a.wsMu.Lock()
			delete(a.wsClients, conn)
			a.wsMu.Unlock()
			conn.Close()
			a.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection closed")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
