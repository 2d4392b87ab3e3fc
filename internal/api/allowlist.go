package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/allowlist"
	"github.com/JakeFAU/carsearch/internal/store"
)

// listAllowlist handles GET /v1/allowlist. It returns {"paths": [...]}, or
// 503 when no allowlist is configured.
func (s *Server) listAllowlist(w http.ResponseWriter, r *http.Request) {
	if s.deps.Allowlist == nil {
		writeError(w, http.StatusServiceUnavailable, "allowlist unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	writeJSON(w, http.StatusOK, map[string]any{"paths": s.deps.Allowlist.AllPaths(ctx)})
}

// addAllowlist handles PUT /v1/allowlist/{path}. The stored path is returned
// in trailing-slash form; 400 for malformed paths, 500 when the source fails.
func (s *Server) addAllowlist(w http.ResponseWriter, r *http.Request) {
	if s.deps.Allowlist == nil {
		writeError(w, http.StatusServiceUnavailable, "allowlist unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()

	norm, err := s.deps.Allowlist.Add(ctx, adminPath(r))
	if err != nil {
		if errors.Is(err, allowlist.ErrInvalidPath) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("allowlist add failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update allowlist")
		return
	}
	s.logger.Info("allowlist path added", zap.String("path", norm), zap.String("request_id", RequestID(ctx)))
	writeJSON(w, http.StatusOK, map[string]string{"path": norm})
}

// removeAllowlist handles DELETE /v1/allowlist/{path}: 204 on success, 404
// when the path was not allowlisted.
func (s *Server) removeAllowlist(w http.ResponseWriter, r *http.Request) {
	if s.deps.Allowlist == nil {
		writeError(w, http.StatusServiceUnavailable, "allowlist unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()

	path := adminPath(r)
	if err := s.deps.Allowlist.Remove(ctx, path); err != nil {
		switch {
		case errors.Is(err, allowlist.ErrInvalidPath):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "path not allowlisted")
		default:
			s.logger.Error("allowlist remove failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update allowlist")
		}
		return
	}
	s.logger.Info("allowlist path removed", zap.String("path", path), zap.String("request_id", RequestID(ctx)))
	w.WriteHeader(http.StatusNoContent)
}

func adminPath(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}
