package reconcile

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// Rebuilder triggers a reconciliation run.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*Result, error)
}

// Handler exposes the manual rebuild trigger. Authorization is a
// shared-secret header check, deliberately orthogonal to the rebuild
// logic itself.
type Handler struct {
	rebuilder  Rebuilder
	adminToken string
	logger     *slog.Logger
}

// NewHandler creates the admin HTTP handler.
func NewHandler(rebuilder Rebuilder, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		rebuilder:  rebuilder,
		adminToken: adminToken,
		logger:     logger.With("handler", "reconcile"),
	}
}

// RegisterRoutes registers admin routes on the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/projections/rebuild", h.HandleRebuild)
	mux.HandleFunc("/health", h.HandleHealth)
}

// HandleRebuild handles POST /admin/projections/rebuild.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		h.writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	result, err := h.rebuilder.Rebuild(r.Context())
	if err != nil {
		if faults.IsKind(err, faults.KindConflict) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("projection rebuild failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "projection rebuild failed")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
