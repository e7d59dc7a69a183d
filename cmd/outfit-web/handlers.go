package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/outfit-lens/internal/gateway"
	"github.com/fpang/outfit-lens/internal/metrics"
	"github.com/fpang/outfit-lens/internal/store"
)

type server struct {
	gw *gateway.Gateway
	st *store.Store
}

func newServer(gw *gateway.Gateway, st *store.Store) *server {
	return &server{gw: gw, st: st}
}

// POST /api/mcp
//
// The body is a tagged operation object. The result JSON is returned
// as-is; validation failures map to 400 and everything else to a
// generic 500.
func (s *server) handleOperation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var op gateway.Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	result, err := s.gw.Execute(r.Context(), &op)
	elapsed := time.Since(start)

	outcome := "success"
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrValidation):
		outcome = "validation_error"
		status = http.StatusBadRequest
	default:
		outcome = "error"
		status = http.StatusInternalServerError
	}

	metrics.New("OutfitLens").
		Dimension("Operation", string(op.Type)).
		Dimension("Result", outcome).
		Metric("OperationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("OperationCount").
		Flush()

	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			httpError(w, status, gwErr.Msg)
			return
		}
		if status == http.StatusBadRequest {
			httpError(w, status, err.Error())
			return
		}
		log.Error().Err(err).Str("operation", string(op.Type)).Msg("Unexpected operation failure")
		httpError(w, status, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GET /api/images/{id}
func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if id == "" || strings.Contains(id, "/") {
		httpError(w, http.StatusBadRequest, "image id is required")
		return
	}

	data, err := s.st.GetImage(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "image not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to read image")
		httpError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	// Image bytes never change for a given id, so let clients cache hard.
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}

// GET /api/images/path?path=...
func (s *server) handleImageByPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filePath := r.URL.Query().Get("path")
	if filePath == "" {
		httpError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Reject path traversal attempts
	if containsPathTraversal(filePath) {
		httpError(w, http.StatusForbidden, "invalid path")
		return
	}

	root, err := filepath.Abs(s.st.Root())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to resolve data root")
		return
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid path")
		return
	}

	// The normalized path must stay inside the data root.
	if absPath != root && !strings.HasPrefix(absPath, root+string(filepath.Separator)) {
		httpError(w, http.StatusForbidden, "path outside data directory")
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		httpError(w, http.StatusNotFound, "file not found")
		return
	}
	if info.IsDir() {
		httpError(w, http.StatusBadRequest, "path is a directory")
		return
	}

	// http.ServeFile handles Content-Type, range requests, and caching
	// headers automatically.
	http.ServeFile(w, r, absPath)
}

// visibilityRequest is the foreground-state report from the presentation layer.
type visibilityRequest struct {
	Visible bool `json:"visible"`
}

// POST /api/visibility
func (s *server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	queue := s.gw.Queue()
	if queue == nil {
		httpError(w, http.StatusInternalServerError, "no queue configured")
		return
	}
	queue.SetVisible(req.Visible)

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"visible": queue.Visible(),
		"queued":  queue.Len(),
	})
}
