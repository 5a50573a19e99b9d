package linkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bondedlink/internal/metrics"
)

const maxErrorBody = 4 << 10

// Client talks to the Link AI backend. Responses are kept loosely typed; the
// normalizer decides what to render from them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("link api error: %d", e.Status)
}

type AgentRequest struct {
	UserID        string  `json:"user_id"`
	MessageText   string  `json:"message_text"`
	UniversityID  string  `json:"university_id"`
	SessionID     *string `json:"session_id"`
	AccessToken   *string `json:"access_token"`
	PreferredName string  `json:"preferred_name,omitempty"`
}

type CollectRequest struct {
	RunID        string  `json:"run_id"`
	UniversityID string  `json:"university_id"`
	SessionID    *string `json:"session_id"`
	AccessToken  *string `json:"access_token"`
}

type ConsentRequest struct {
	RunID           string `json:"run_id"`
	RequesterUserID string `json:"requester_user_id"`
	TargetUserID    string `json:"target_user_id"`
	RequesterOK     bool   `json:"requester_ok"`
	TargetOK        bool   `json:"target_ok"`
}

type StartOutreachRequest struct {
	UserID       string `json:"user_id"`
	Question     string `json:"question"`
	UniversityID string `json:"university_id"`
}

type styleRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Query sends a chat turn to the agent.
func (c *Client) Query(ctx context.Context, req AgentRequest) (map[string]any, error) {
	return c.post(ctx, "agent", "/link/agent", req)
}

func (c *Client) CollectOutreach(ctx context.Context, req CollectRequest) (map[string]any, error) {
	return c.post(ctx, "outreach_collect", "/link/outreach/collect", req)
}

func (c *Client) ResolveConsent(ctx context.Context, req ConsentRequest) (map[string]any, error) {
	return c.post(ctx, "consent_resolve", "/link/consent/resolve", req)
}

func (c *Client) StartOutreach(ctx context.Context, req StartOutreachRequest) (map[string]any, error) {
	return c.post(ctx, "outreach_start", "/outreach/start", req)
}

// LearnStyle feeds one user message to the style model.
func (c *Client) LearnStyle(ctx context.Context, userID, message string) error {
	_, err := c.post(ctx, "style_learn", "/style/learn", styleRequest{UserID: userID, Message: message})
	return err
}

// Journal fetches the user's journal for the last days (7 when days <= 0).
func (c *Client) Journal(ctx context.Context, userID string, days int) (map[string]any, error) {
	if days <= 0 {
		days = 7
	}
	path := "/journal/" + url.PathEscape(userID) + "?days=" + strconv.Itoa(days)
	return c.do(ctx, "journal", http.MethodGet, path, nil)
}

func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "health", http.MethodGet, "/health", nil)
}

func (c *Client) post(ctx context.Context, endpoint, path string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, endpoint, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte) (out map[string]any, err error) {
	started := time.Now()
	defer func() {
		c.metrics.BackendRequest(endpoint, started, err)
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("link api error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if obj, ok := decoded.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"response": decoded}, nil
}
