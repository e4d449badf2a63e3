package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/engine"
	"roulette-dozen/internal/ml"

	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

type predictionResponse struct {
	Dozen dozen.Label `json:"duzia_prevista"`
	ml.Prediction
}

type historyResponse struct {
	Total   int                 `json:"total"`
	History []dozen.Observation `json:"historico"`
}

type modelResponse struct {
	engine.Snapshot
	Window     int               `json:"window,omitempty"`
	Target     string            `json:"target,omitempty"`
	Schema     int               `json:"schema_version,omitempty"`
	Importance []ml.FeatureStats `json:"feature_importance,omitempty"`
}

type trainResponse struct {
	TrainedOn       int       `json:"trained_on"`
	Samples         int       `json:"samples"`
	Evaluated       bool      `json:"evaluated"`
	HeldOutAccuracy float64   `json:"held_out_accuracy"`
	TrainedAt       time.Time `json:"trained_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"history_size":  snap.HistorySize,
		"model_trained": snap.ModelTrained,
		"timestamp":     time.Now().UTC(),
	})
}

// handlePredict retrains when history changed and returns the gated
// prediction. A gated result is still a 200 with emitted=false.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.engine.Count() == 0 {
		writeError(w, http.StatusNotFound, "history not found")
		return
	}
	pred, err := s.engine.Forecast(r.Context())
	switch {
	case errors.Is(err, ml.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, ml.ErrModelNotTrained):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("Prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{Dozen: pred.Label, Prediction: pred})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.engine.History()
	writeJSON(w, http.StatusOK, historyResponse{Total: len(h), History: h})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Capture(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Manual capture failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleIngest accepts one observation posted by an external collector.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var obs dozen.Observation
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	res, err := s.engine.Ingest(r.Context(), obs)
	if err != nil {
		log.Error().Err(err).Msg("Ingest failed")
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	status := http.StatusOK
	switch res.Status {
	case engine.StatusSaved:
		status = http.StatusCreated
	case engine.StatusRejected:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Train(r.Context())
	switch {
	case errors.Is(err, ml.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("Forced training failed")
		writeError(w, http.StatusInternalServerError, "training failed")
		return
	}
	if m == nil {
		// A concurrent rewrite of history made this run stale.
		m = s.engine.Model()
	}
	if m == nil {
		writeError(w, http.StatusConflict, "history changed during training, retry")
		return
	}
	writeJSON(w, http.StatusOK, trainResponse{
		TrainedOn:       m.TrainedOn,
		Samples:         m.TrainSamples,
		Evaluated:       m.Evaluated,
		HeldOutAccuracy: m.HeldOutAccuracy,
		TrainedAt:       m.TrainedAt,
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	resp := modelResponse{Snapshot: s.engine.Snapshot()}
	if m := s.engine.Model(); m != nil {
		resp.Window = m.Window
		resp.Target = string(m.Target)
		resp.Schema = m.SchemaVersion
		resp.Importance = ml.FeatureImportance(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	mm := s.engine.Versions()
	if mm == nil {
		writeJSON(w, http.StatusOK, []ml.ModelVersion{})
		return
	}
	writeJSON(w, http.StatusOK, mm.ListVersions())
}
