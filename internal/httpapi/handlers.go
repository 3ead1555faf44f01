package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/hub"
	"github.com/DoyleJ11/ghost-dash/internal/store"
)

// ResultLister is the read side of the result store.
type ResultLister interface {
	Recent(ctx context.Context, limit int) ([]store.Result, error)
}

// Healthz reports the hub's live counts, or 503 once it has stopped.
func Healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := h.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(struct {
			Status   string `json:"status"`
			Conns    int    `json:"conns"`
			Sessions int    `json:"sessions"`
		}{Status: "ok", Conns: v.Conns, Sessions: len(v.Sessions)})
	}
}

// Results lists recently finished matches, newest first. ?limit=N is clamped
// to the store's maximum.
func Results(results ResultLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := store.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		list, err := results.Recent(r.Context(), store.ClampLimit(limit))
		if err != nil {
			log.Error("list results", zap.Error(err))
			http.Error(w, "failed to list results", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []store.Result{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(struct {
			Results []store.Result `json:"results"`
		}{Results: list})
	}
}
