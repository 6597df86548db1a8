// Package auth acquires the short-lived, single-use session credentials the
// recognizer requires. Tokens are minted by a trusted backend endpoint and
// consumed exactly once per connection attempt.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"live-transcription-engine/internal/recognizer"
)

// Provider issues one session credential per call. Safe to call once per
// session start; implementations must not cache or reuse tokens.
type Provider interface {
	IssueToken(ctx context.Context) (string, error)
}

// StaticProvider returns a fixed token. Useful for development setups where
// the backend accepts a long-lived key.
type StaticProvider struct {
	Token string
}

// IssueToken returns the configured token.
func (p *StaticProvider) IssueToken(_ context.Context) (string, error) {
	if p.Token == "" {
		return "", recognizer.NewError(recognizer.CodeTokenUnavailable, "no static token configured")
	}
	return p.Token, nil
}

// HTTPProvider mints tokens from a backend issuer endpoint.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given issuer URL.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// tokenResponse is the issuer's reply shape.
type tokenResponse struct {
	Token string `json:"token"`
}

// IssueToken requests a fresh single-use token.
func (p *HTTPProvider) IssueToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, nil)
	if err != nil {
		return "", recognizer.NewError(recognizer.CodeTokenUnavailable, "build token request: %v", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", recognizer.NewError(recognizer.CodeTokenUnavailable, "token request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", recognizer.NewError(recognizer.CodeTokenUnavailable,
			"token issuer returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", recognizer.NewError(recognizer.CodeTokenUnavailable, "decode token response: %v", err)
	}
	if tr.Token == "" {
		return "", recognizer.NewError(recognizer.CodeTokenUnavailable, "token issuer returned an empty token")
	}
	return tr.Token, nil
}

// FromConfig picks the provider implied by the configuration: the issuer
// endpoint when set, the static token otherwise.
func FromConfig(issuerURL, staticToken string, timeout time.Duration) (Provider, error) {
	if issuerURL != "" {
		return NewHTTPProvider(issuerURL, timeout), nil
	}
	if staticToken != "" {
		return &StaticProvider{Token: staticToken}, nil
	}
	return nil, fmt.Errorf("no token source configured: set an issuer URL or a static token")
}
