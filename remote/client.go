/*
Package remote is the HTTP client of the plan service.

PURPOSE:
  Wraps the REST surface the engine talks to:

    GET    /api/planes          list the caller's plans
    POST   /api/planes          create a draft, returns the stored record
    PUT    /api/planes/{id}     partial update
    DELETE /api/planes/{id}     remove
    POST   /auth/login          {email, password} -> {token, user}
    POST   /auth/register       {username, email, password} -> {token, user}
    PATCH  /auth/profile        {username} -> {user}

ERRORS:
  A non-2xx response becomes *APIError carrying the body's "error" or
  "message" text unchanged. A body that is not JSON becomes ErrBadResponse.
  Transport failures are returned as-is (wrapped with the operation).

AUTH:
  Plan endpoints send "Authorization: Bearer <token>" obtained from the
  TokenSource on every call. Authorized() lets callers fail fast before
  changing local state.

SEE ALSO:
  - wire/plan.go: Request and response bodies
  - auth/session.go: The usual TokenSource
  - planstore/store.go: The main caller
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/perugo/reservation-engine/plan"
	"github.com/perugo/reservation-engine/wire"
)

const (
	DefaultBaseURL = "https://perugo-backend-production.up.railway.app"
	DefaultTimeout = 20 * time.Second
)

var (
	// ErrBadResponse is returned when the service answers with something that is not JSON.
	ErrBadResponse = errors.New("malformed response from plan service")

	// ErrNoTokenSource is returned by authenticated calls on a client without credentials.
	ErrNoTokenSource = errors.New("client has no token source")
)

// TokenSource supplies the bearer token. It returns an error when signed out.
type TokenSource interface {
	Token() (string, error)
}

// APIError is a non-2xx answer.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}

func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *slog.Logger
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// =============================================================================
// PLANS
// =============================================================================

// Authorized reports whether a token is currently available.
func (c *Client) Authorized() error {
	_, err := c.token()
	return err
}

func (c *Client) ListPlans(ctx context.Context) ([]wire.PlanRecord, error) {
	body, err := c.doJSON(ctx, "list plans", http.MethodGet, "/api/planes", true, nil)
	if err != nil {
		return nil, err
	}
	recs, err := wire.DecodeList(body)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w: %v", ErrBadResponse, err)
	}
	return recs, nil
}

func (c *Client) CreatePlan(ctx context.Context, rec wire.PlanRecord) (wire.PlanRecord, error) {
	body, err := c.doJSON(ctx, "create plan", http.MethodPost, "/api/planes", true, rec)
	if err != nil {
		return wire.PlanRecord{}, err
	}
	out, err := wire.DecodeOne(body)
	if err != nil {
		return wire.PlanRecord{}, fmt.Errorf("create plan: %w: %v", ErrBadResponse, err)
	}
	return out, nil
}

func (c *Client) UpdatePlan(ctx context.Context, id plan.ID, patch map[string]any) error {
	_, err := c.doJSON(ctx, "update plan", http.MethodPut, planPath(id), true, patch)
	return err
}

func (c *Client) DeletePlan(ctx context.Context, id plan.ID) error {
	_, err := c.doJSON(ctx, "delete plan", http.MethodDelete, planPath(id), true, nil)
	return err
}

func planPath(id plan.ID) string { return "/api/planes/" + url.PathEscape(string(id)) }

// =============================================================================
// AUTH
// =============================================================================

func (c *Client) Login(ctx context.Context, req wire.LoginRequest) (wire.AuthResponse, error) {
	var out wire.AuthResponse
	err := c.call(ctx, "login", http.MethodPost, "/auth/login", false, req, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, req wire.RegisterRequest) (wire.AuthResponse, error) {
	var out wire.AuthResponse
	err := c.call(ctx, "register", http.MethodPost, "/auth/register", false, req, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, req wire.ProfileRequest) (wire.ProfileResponse, error) {
	var out wire.ProfileResponse
	err := c.call(ctx, "update profile", http.MethodPatch, "/auth/profile", true, req, &out)
	return out, err
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) call(ctx context.Context, op, method, path string, authed bool, reqBody, respBody any) error {
	body, err := c.doJSON(ctx, op, method, path, authed, reqBody)
	if err != nil {
		return err
	}
	if respBody != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("%s: %w: %v", op, ErrBadResponse, err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, authed bool, reqBody any) ([]byte, error) {
	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if authed {
		token, err := c.token()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	c.logger().Debug("plan service call",
		"op", op, "method", method, "path", path,
		"status", resp.StatusCode, "elapsed", time.Since(started),
		"request_id", req.Header.Get("X-Request-ID"))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Op: op, Status: resp.StatusCode}
		if len(bytes.TrimSpace(b)) > 0 {
			var eb wire.ErrorBody
			if err := json.Unmarshal(b, &eb); err != nil {
				return nil, fmt.Errorf("%s: %w (status %d)", op, ErrBadResponse, resp.StatusCode)
			}
			apiErr.Message = eb.Text()
		}
		return nil, apiErr
	}
	if len(bytes.TrimSpace(b)) > 0 && !json.Valid(b) {
		return nil, fmt.Errorf("%s: %w", op, ErrBadResponse)
	}
	return b, nil
}

func (c *Client) token() (string, error) {
	if c.Tokens == nil {
		return "", ErrNoTokenSource
	}
	return c.Tokens.Token()
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}
	return c.HTTPClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger.With("component", "remote")
}
