package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/session"
)

const requestTimeout = 15 * time.Second

// apiClient talks to the Gatehouse REST API. With a session manager,
// requests carry the stored token through session.Transport.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(serverURL string, mgr *session.Manager) *apiClient {
	hc := &http.Client{Timeout: requestTimeout}
	if mgr != nil {
		hc.Transport = session.NewTransport(mgr, nil)
	}
	return &apiClient{
		baseURL: strings.TrimRight(serverURL, "/") + "/api/v1",
		http:    hc,
	}
}

type loginResponse struct {
	AccessToken string                `json:"access_token"`
	TokenType   string                `json:"token_type"`
	ExpiresIn   int                   `json:"expires_in"`
	ExpiresAt   time.Time             `json:"expires_at"`
	Principal   auth.PrincipalSummary `json:"principal"`
}

type meResponse struct {
	Subject        string      `json:"subject"`
	Email          string      `json:"email"`
	Roles          []auth.Role `json:"roles"`
	EffectiveRoles []auth.Role `json:"effective_roles"`
	IssuedAt       time.Time   `json:"issued_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status     int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter string `json:"-"`
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.RetryAfter != "" {
		return fmt.Sprintf("%s (retry after %ss)", msg, e.RetryAfter)
	}
	return msg
}

func (c *apiClient) login(ctx context.Context, email, password string) (*loginResponse, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) me(ctx context.Context) (*meResponse, error) {
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode, RetryAfter: resp.Header.Get("Retry-After")}
		_ = json.NewDecoder(resp.Body).Decode(apiErr) //nolint:errcheck // status alone is enough
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// isUnauthorized reports whether err is a 401 from the server.
func isUnauthorized(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
