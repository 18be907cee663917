package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/collabry/backend/internal/service"
	"github.com/collabry/backend/internal/transport/http/middleware"
	"github.com/collabry/backend/pkg/validator"
)

type AssistantHandler struct {
	assistantService *service.AssistantService
}

func NewAssistantHandler(assistantService *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

// Send forwards a message to the platform assistant and returns its reply.
// 503 when the oracle is down; nothing is persisted in that case.
func (h *AssistantHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		Message string `json:"message"`
		Model   string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateAssistantPrompt(input.Message); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	reply, err := h.assistantService.Converse(r.Context(), userID, input.Message, input.Model)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssistantUnavailable):
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Assistant is temporarily unavailable")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "MISSING_CONTENT", "Message is required")
		default:
			log.Printf("ERROR assistant send: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, reply)
}
