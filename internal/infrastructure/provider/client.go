package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout    = 10 * time.Second
	sessionCreatePath = "/session/create"
	versionHeader     = "Knot-Version"
	maxResponseBytes  = 1 << 20
)

// Client calls the provider's REST API. It never retries; callers own the
// retry policy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authHeader string
	apiVersion string
}

var _ ClientInterface = (*Client)(nil)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	APIVersion   string
	Timeout      time.Duration
}

// NewClient creates a provider client authenticating with HTTP Basic auth.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.ClientID+":"+cfg.ClientSecret)),
		apiVersion: cfg.APIVersion,
	}
}

// CreateSessionRequest is the body of POST /session/create.
type CreateSessionRequest struct {
	ExternalUserID string `json:"external_user_id"`
	Type           string `json:"type"`
	CardID         string `json:"card_id,omitempty"`
	Email          string `json:"email,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string
}

// sessionResponse accepts both field names the provider uses for the id.
type sessionResponse struct {
	Session   *string `json:"session"`
	SessionID *string `json:"session_id"`
}

// ErrorResponse is the provider's error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateSession starts a linking session for the user.
func (c *Client) CreateSession(ctx context.Context, params CreateSessionRequest) (*CreateSessionResponse, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionCreatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiVersion != "" {
		req.Header.Set(versionHeader, c.apiVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindRejected, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var parsed sessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: err}
	}

	sessionID, ok := normalizeSessionID(parsed)
	if !ok {
		return nil, &Error{Kind: KindMissingSessionID}
	}

	return &CreateSessionResponse{SessionID: sessionID}, nil
}

// normalizeSessionID is the one place that knows the provider returns the
// id as either "session" or "session_id".
func normalizeSessionID(r sessionResponse) (string, bool) {
	for _, candidate := range []*string{r.SessionID, r.Session} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return strings.TrimSpace(*candidate), true
		}
	}
	return "", false
}

// errorMessage extracts a human-readable message for logs. It is never used
// for control flow.
func errorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error != "" && errResp.Message != "":
			return errResp.Error + " - " + errResp.Message
		case errResp.Message != "":
			return errResp.Message
		case errResp.Error != "":
			return errResp.Error
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
