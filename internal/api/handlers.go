package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/pipeline"
)

// Client-facing error messages
const (
	msgUnsupportedMediaType = "Content-Type must be application/json"
	msgBodyTooLarge         = "request body too large"
	msgReframeFailed        = "Failed to reframe message"
)

func (s *Server) reframeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.reframeHandler: processing reframe request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		slog.Warn("Server.reframeHandler: method not allowed", "method", r.Method)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		slog.Warn("Server.reframeHandler: unsupported content type", "content_type", r.Header.Get("Content-Type"))
		writeJSONResponse(w, http.StatusUnsupportedMediaType, models.Error(msgUnsupportedMediaType))
		return
	}

	var req models.ReframeRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("Server.reframeHandler: request body too large", "limit", tooLarge.Limit)
			writeJSONResponse(w, http.StatusRequestEntityTooLarge, models.Error(msgBodyTooLarge))
			return
		}
		slog.Warn("Server.reframeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrInvalidJSONBody.Error()))
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(verr.Error()))
			return
		}
		slog.Error("Server.reframeHandler: pipeline failed", "error", err, "session_id", res.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(msgReframeFailed))
		return
	}

	slog.Debug("Server.reframeHandler: request completed", "outcome", res.Outcome, "session_id", res.SessionID)
	writeJSONResponse(w, http.StatusOK, res.Body)
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if s.provider != "" {
		healthData["provider"] = s.provider
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}
