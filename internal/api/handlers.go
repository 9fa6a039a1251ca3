package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/export"
	"github.com/sells-group/portverify/internal/intake"
	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/store"
	"github.com/sells-group/portverify/internal/verify"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recordsResponse struct {
	Records []model.Record       `json:"records"`
	Counts  map[model.Status]int `json:"counts"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	var records []model.Record
	if status := model.Status(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		records = s.deps.Ledger.Filter(status)
	} else {
		records = s.deps.Ledger.Snapshot()
	}
	if records == nil {
		records = []model.Record{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{Records: records, Counts: s.deps.Ledger.Counts()})
}

type addRecordsRequest struct {
	Names []string `json:"names"`
	Text  string   `json:"text"`
}

func (s *Server) handleAddRecords(w http.ResponseWriter, r *http.Request) {
	var req addRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	names := append(req.Names, intake.SplitNames(req.Text)...)
	records, err := store.Enqueue(r.Context(), s.deps.Store, s.deps.Ledger, names)
	if err != nil {
		zap.L().Error("api: enqueue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store records")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "no names given")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"added": len(records), "records": records})
}

func (s *Server) handleClearRecords(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.clearLedger(r.Context())
	if err != nil {
		zap.L().Error("api: clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not clear records")
		return
	}
	if !cleared {
		writeError(w, http.StatusConflict, "a run is in progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartRun(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.startRun()
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "a run is already in progress", "processed": p.Processed, "total": p.Total,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "total": p.Total})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Summarizer.Summarize(r.Context(), s.deps.Ledger)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, verify.ErrSummaryFailed) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]string{"summary": text, "error": eris.ToString(err, false)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="locations.csv"`)
	if err := export.WriteCSV(w, s.deps.Ledger.Snapshot()); err != nil {
		zap.L().Error("api: export failed", zap.Error(err))
	}
}
