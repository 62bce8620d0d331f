package handlers

import (
	"net/http"
)

// RegisterRoutes mounts the reconciliation API on mux, wrapping every route in auth.
func RegisterRoutes(mux *http.ServeMux, h *ReconcileHandler, auth func(http.Handler) http.Handler) {
	mux.Handle("POST /api/reconcile", auth(http.HandlerFunc(h.HandleReconcile)))
	mux.Handle("GET /api/runs", auth(http.HandlerFunc(h.HandleListRuns)))
	mux.Handle("GET /api/runs/{id}", auth(http.HandlerFunc(h.HandleGetRun)))
	mux.Handle("GET /api/runs/{id}/trades", auth(http.HandlerFunc(h.HandleGetRunTrades)))
	mux.Handle("GET /api/runs/{id}/summary", auth(http.HandlerFunc(h.HandleGetRunSummary)))
	mux.Handle("GET /api/runs/{id}/unusable", auth(http.HandlerFunc(h.HandleGetRunUnusable)))
}
