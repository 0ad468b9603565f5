package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hongminglow/punchclock/internal/auth"
	"github.com/hongminglow/punchclock/internal/models/dto"
)

// ErrInvalidSession indicates the provider answered with a token set the client cannot use.
var ErrInvalidSession = errors.New("identity provider returned an unusable session")

// ProviderError carries the provider's own message so it can be shown verbatim.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// User identifies the signed-in person.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Label is what the page shows next to the sign-out button.
func (u User) Label() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Session is the provider-issued token set plus the user it belongs to.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// ExpiresWithin reports whether the access token is unusable within the margin.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// Client talks to a GoTrue-compatible identity provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tokens  *auth.TokenParser
	now     func() time.Time
}

// NewClient creates a provider client for the given project URL and public key.
func NewClient(baseURL, apiKey string, tokens *auth.TokenParser, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", dto.LoginRequest{Email: email, Password: password})
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidSession
	}
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// SignOut revokes the session at the provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.post(ctx, "/auth/v1/logout", nil, accessToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		return decodeProviderError(resp)
	}
	return nil
}

func (c *Client) token(ctx context.Context, grant string, payload any) (*Session, error) {
	query := url.Values{"grant_type": {grant}}
	resp, err := c.post(ctx, "/auth/v1/token", query, "", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeProviderError(resp)
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return c.sessionFrom(out)
}

func (c *Client) sessionFrom(out tokenResponse) (*Session, error) {
	if out.AccessToken == "" {
		return nil, ErrInvalidSession
	}
	sess := &Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		User:         out.User,
	}
	switch {
	case out.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	case out.ExpiresIn > 0:
		sess.ExpiresAt = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}

	claims, err := c.tokens.Parse(out.AccessToken)
	if err != nil {
		if errors.Is(err, auth.ErrMalformedToken) {
			log.Printf("identity: access token claims unreadable: %v", err)
			if sess.User.ID == "" {
				return nil, ErrInvalidSession
			}
			return sess, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if sess.User.ID == "" {
		sess.User.ID = claims.Subject
	}
	if sess.User.Email == "" {
		sess.User.Email = claims.Email
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = claims.Expiry()
	}
	return sess, nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values, bearer string, payload any) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request %s: %w", path, err)
	}
	return resp, nil
}

func decodeProviderError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorResponse
	_ = json.Unmarshal(raw, &body)

	msg := firstNonEmpty(body.ErrorDescription, body.Msg, body.Message, body.Error)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: msg}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
