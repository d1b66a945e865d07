package provider

import "context"

// ClientInterface defines the methods required from the provider API client
type ClientInterface interface {
	CreateSession(ctx context.Context, params CreateSessionRequest) (*CreateSessionResponse, error)
}
