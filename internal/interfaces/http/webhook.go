package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"ledgerlink/internal/domain/webhook"
)

// maxWebhookBody caps inbound webhook bodies.
const maxWebhookBody = 1 << 20

// WebhookRouter is satisfied by *webhook.Router.
type WebhookRouter interface {
	Handle(ctx context.Context, d webhook.Delivery) (webhook.Outcome, error)
}

type WebhookHandler struct {
	router WebhookRouter
}

func NewWebhookHandler(router WebhookRouter) *WebhookHandler {
	return &WebhookHandler{router: router}
}

// HandleProviderWebhook accepts POST /webhooks/provider. The provider
// retries anything that is not a 2xx, so only processing failures return 5xx.
func (h *WebhookHandler) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	delivery := webhook.Delivery{
		ContentLength:  contentLength(r),
		ContentType:    r.Header.Get("Content-Type"),
		EncryptionType: r.Header.Get(webhook.HeaderEncryptionType),
		Signature:      r.Header.Get(webhook.HeaderSignature),
		Body:           body,
		ReceivedAt:     time.Now(),
	}

	outcome, err := h.router.Handle(r.Context(), delivery)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, outcome)
	case errors.Is(err, webhook.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, webhook.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Error processing webhook %q: %v", outcome.EventType, err)
		writeError(w, http.StatusInternalServerError, "failed to process webhook")
	}
}

// contentLength prefers the header as sent and falls back to r.ContentLength.
func contentLength(r *http.Request) string {
	if v := r.Header.Get("Content-Length"); v != "" {
		return v
	}
	if r.ContentLength >= 0 {
		return strconv.FormatInt(r.ContentLength, 10)
	}
	return ""
}
