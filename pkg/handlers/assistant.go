package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/services"
)

// maxQueryBodyBytes bounds the request body of a question.
const maxQueryBodyBytes = 64 << 10

// AssistantHandler serves natural-language questions over HTTP.
type AssistantHandler struct {
	assistant services.AssistantService
	logger    *zap.Logger
}

// NewAssistantHandler creates an AssistantHandler.
func NewAssistantHandler(assistant services.AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

// RegisterRoutes registers the question endpoint behind authentication.
func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/assistant/query", authMiddleware.RequireAuth(h.Query))
}

// Query handles POST /api/assistant/query.
// Every answer, including refusals and failures, is a 200 with the
// response payload. Only malformed requests get an error status.
func (h *AssistantHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "request_too_large", "Request body is too large")
			return
		}
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON with a query field")
		return
	}

	resp := h.assistant.Ask(r.Context(), &req)

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode assistant response",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
}
