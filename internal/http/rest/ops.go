package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// OpsHandler serves health, run status, outcome history and metrics.
type OpsHandler struct {
	status  *StatusStore
	history storage.HistoryRepository
	metrics http.Handler
}

// NewOpsHandler creates the handler. history and metrics may be nil; the
// matching routes then answer 404.
func NewOpsHandler(status *StatusStore, history storage.HistoryRepository, metrics http.Handler) *OpsHandler {
	return &OpsHandler{status: status, history: history, metrics: metrics}
}

func (h *OpsHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)
	r.Get("/status", h.HandleStatus)
	r.Get("/history", h.HandleHistory)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	return r
}

func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OpsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.status.Snapshot())
}

// HandleHistory lists recorded item outcomes, newest first. Query parameters:
// feed (optional filter) and limit.
func (h *OpsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)

		return
	}

	limit := defaultHistoryLimit

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)

			return
		}

		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.GetOutcomes(r.Context(), r.URL.Query().Get("feed"), limit)
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to get outcome history", "err", err)
		http.Error(w, "failed to get history", http.StatusInternalServerError)

		return
	}

	if records == nil {
		records = []storage.OutcomeRecord{}
	}

	writeJSON(w, r, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}
