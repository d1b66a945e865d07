package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ledgerlink/internal/domain/session"
	"ledgerlink/internal/infrastructure/provider"
	"ledgerlink/internal/shared/middleware"
)

// SessionCreator is satisfied by *session.Service.
type SessionCreator interface {
	Create(ctx context.Context, userID string, product session.ProductType, email string) (*session.Session, error)
}

type SessionHandler struct {
	sessions SessionCreator
	validate *validator.Validate
}

func NewSessionHandler(sessions SessionCreator) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type CreateSessionRequest struct {
	Type  string `json:"type" validate:"required,oneof=card_switcher transaction_link"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// HandleCreateSession starts a provider linking session for the caller.
func (h *SessionHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "type must be card_switcher or transaction_link and email must be valid")
		return
	}
	if req.Email == "" {
		req.Email = middleware.EmailFromContext(r.Context())
	}

	sess, err := h.sessions.Create(r.Context(), userID, session.ProductType(req.Type), req.Email)
	if err != nil {
		h.writeSessionError(w, userID, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) writeSessionError(w http.ResponseWriter, userID string, err error) {
	var provErr *provider.Error
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &provErr):
		log.Printf("Session creation for user %s failed: %v", userID, err)
		status := http.StatusBadGateway
		if provErr.Kind == provider.KindUnreachable {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: "failed to create session", Kind: string(provErr.Kind)})
	default:
		log.Printf("Session creation for user %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
	}
}
