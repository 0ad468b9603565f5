package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/models/dto"
)

// ErrUnauthorized matches any APIError with a 401 status.
var ErrUnauthorized = errors.New("backend rejected the access token")

// APIError is a non-success response from the backend. Detail holds the server's
// own message when it sent one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// DetailOr returns the server message from err, or fallback when there is none.
func DetailOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Detail) != "" {
		return apiErr.Detail
	}
	return fallback
}

// Client calls the punch backend REST endpoints with a bearer token.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	return &Client{baseURL: u, http: &http.Client{Timeout: timeout}}, nil
}

// MyPunches lists the caller's own punches, newest first.
func (c *Client) MyPunches(ctx context.Context, token string) ([]models.Punch, error) {
	var out []models.Punch
	if err := c.do(ctx, http.MethodGet, "/api/my-punches", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clock registers a punch for the caller.
func (c *Client) Clock(ctx context.Context, token string, req dto.ClockRequest) (dto.ClockResponse, error) {
	var out dto.ClockResponse
	err := c.do(ctx, http.MethodPost, "/api/clock", token, nil, req, &out)
	return out, err
}

// Me returns the caller's profile, including the role.
func (c *Client) Me(ctx context.Context, token string) (models.Profile, error) {
	var out models.Profile
	err := c.do(ctx, http.MethodGet, "/api/me", token, nil, nil, &out)
	return out, err
}

// Team lists the members a manager or admin may view.
func (c *Client) Team(ctx context.Context, token string) ([]models.TeamMember, error) {
	var out []models.TeamMember
	if err := c.do(ctx, http.MethodGet, "/api/team", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TeamPunches lists one member's punches within the optional date range.
func (c *Client) TeamPunches(ctx context.Context, token string, q dto.TeamPunchQuery) ([]models.Punch, error) {
	params := url.Values{}
	params.Set("user_id", q.UserID)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Start != "" {
		params.Set("start", q.Start)
	}
	if q.End != "" {
		params.Set("end", q.End)
	}

	var out []models.Punch
	if err := c.do(ctx, http.MethodGet, "/api/team-punches", token, params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePunch edits a punch note.
func (c *Client) UpdatePunch(ctx context.Context, token string, req dto.PunchUpdateRequest) error {
	return c.do(ctx, http.MethodPost, "/api/punch-update", token, nil, req, nil)
}

// ApprovePunch records an approve/reject decision.
func (c *Client) ApprovePunch(ctx context.Context, token string, req dto.PunchApprovalRequest) error {
	return c.do(ctx, http.MethodPost, "/api/punch-approve", token, nil, req, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, payload, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeAPIError reads the FastAPI-style {"detail": "..."} body. Validation errors
// send a list instead of a string; those leave Detail empty.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var detail string
		if json.Unmarshal(body.Detail, &detail) == nil {
			apiErr.Detail = detail
		}
	}
	return apiErr
}
