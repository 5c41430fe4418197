// Package client is the typed HTTP client for the arena server. It issues
// authenticated JSON requests and normalizes failures into APIError values;
// it does not retry, cache, or rate-limit.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to one arena server. All methods are safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession attaches the credential session used for authenticated calls.
func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: NewSession(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the credential session this client reads from.
func (c *Client) Session() *Session { return c.session }

// do issues one JSON round-trip. When auth is set and the session holds a
// credential it is attached as a bearer token; when no credential is present
// the request still goes out, so the server stays the single authority for
// unauthenticated rejection.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, auth bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		if tok := c.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug("request rejected",
			"method", method, "path", path, "status", resp.StatusCode)
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(resp.StatusCode, text)}
	}

	if out == nil || len(bytes.TrimSpace(text)) == 0 {
		return nil
	}
	if err := json.Unmarshal(text, out); err != nil {
		return &MalformedBodyError{Raw: string(text), Err: err}
	}
	return nil
}

// errorDetail extracts the "detail" field from an error body, falling back to
// "HTTP <status>" when absent and to the raw text when the body is not JSON.
func errorDetail(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fmt.Sprintf("HTTP %d", status)
	}

	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return string(trimmed)
	}
	if parsed.Detail == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	return parsed.Detail
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, false)
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	var out User
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"username": username, "password": password}, &out, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token. The session is not touched;
// callers decide whether to install the new credential.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	var out Token
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &out, false)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBots returns the caller's bots.
func (c *Client) ListBots(ctx context.Context) ([]Bot, error) {
	var out []Bot
	if err := c.do(ctx, http.MethodGet, "/api/bots", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBot creates a bot; the initial code is saved as version 1 and made
// active by the server.
func (c *Client) CreateBot(ctx context.Context, envID, name, description, code string) (*Bot, error) {
	var out Bot
	err := c.do(ctx, http.MethodPost, "/api/bots", map[string]string{
		"env_id":      envID,
		"name":        name,
		"description": description,
		"code":        code,
	}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBot fetches the full bot record: versions plus active pointer.
func (c *Client) GetBot(ctx context.Context, botID int64) (*BotDetail, error) {
	var out BotDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/bots/%d", botID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateVersion persists a new code version; the server assigns id and
// sequence number. Creating and activating are separate calls by design.
func (c *Client) CreateVersion(ctx context.Context, botID int64, code string) (*Version, error) {
	var out Version
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bots/%d/versions", botID),
		map[string]string{"code": code}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetActiveVersion moves the bot's active pointer.
func (c *Client) SetActiveVersion(ctx context.Context, botID, versionID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bots/%d/active_version", botID),
		map[string]int64{"version_id": versionID}, nil, true)
}

// DeleteVersion removes a version. The server rejects deleting the active
// version; callers are expected to block that case beforehand.
func (c *Client) DeleteVersion(ctx context.Context, botID, versionID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/bots/%d/versions/%d", botID, versionID), nil, nil, true)
}

// DeleteBot removes a bot and everything it owns.
func (c *Client) DeleteBot(ctx context.Context, botID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/bots/%d", botID), nil, nil, true)
}

// RunTest runs the bot's active version against the baseline opponent.
func (c *Client) RunTest(ctx context.Context, botID int64) (*RunResult, error) {
	var out RunResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bots/%d/run-test", botID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMatch fetches one match with its per-round steps.
func (c *Client) GetMatch(ctx context.Context, matchID int64) (*Match, error) {
	var out Match
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/matches/%d", matchID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit flips the bot's submitted flag, making it leaderboard-eligible.
func (c *Client) Submit(ctx context.Context, botID int64) (*Bot, error) {
	var out Bot
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bots/%d/submit", botID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leaderboard fetches the public IPD leaderboard.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	var out []LeaderboardRow
	if err := c.do(ctx, http.MethodGet, "/api/env/ipd/leaderboard", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}
