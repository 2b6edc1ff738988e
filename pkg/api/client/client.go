package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the hosted backend the portal was built against.
const DefaultBaseURL = "https://iv1201-vt24-backend.vercel.app"

// Backend routes.
const (
	pathLogin         = "/unauthorized/login"
	pathCreateAccount = "/unauthorized/createAccount"
	pathSubmit        = "/user/createNewApplication"
	pathApplications  = "/recruiter/allApplications"
	pathCheckLogin    = "/validate/checkIfLogIn"
)

// HeaderRequestID correlates client logs with backend logs.
const HeaderRequestID = "X-Request-ID"

// Client mediates all communication with the recruitment backend and holds
// the session used to authenticate requests. It is safe for concurrent use;
// concurrent logins race and the last one to resolve wins.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *clientMetrics
	session    sessionStore
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The default has no
// timeout; callers wanting one supply it here or through the context.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithLogger attaches a structured logger. Logging is discarded otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSession seeds the client with a previously obtained session.
func WithSession(s Session) Option {
	return func(c *Client) {
		c.session.store(s)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the current session snapshot.
func (c *Client) Session() Session {
	return c.session.load()
}

// response is a fully read HTTP reply.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do performs one round trip. Any failure before a complete body is read is
// returned as a transport envelope and counted. Otherwise the caller counts
// the outcome with settle once it has judged the reply.
func (c *Client) do(ctx context.Context, op, method, path string, body any, token string) (response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	requestID := uuid.NewString()
	log := c.logger.With("op", op, "method", method, "path", path, "request_id", requestID)

	resp, err := c.roundTrip(ctx, method, path, body, token, requestID)
	elapsed := time.Since(started)
	if err != nil {
		log.Warn("request failed", "error", err, "duration", elapsed)
		c.metrics.observe(op, elapsed)
		c.metrics.count(op, outcomeTransport)
		return response{}, transportFailure(err)
	}
	log.Debug("request completed", "status", resp.status, "duration", elapsed)
	c.metrics.observe(op, elapsed)
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, token, requestID string) (response, error) {
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	req.Header.Set(HeaderRequestID, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// decode converts a reply into v, surfacing {"error": ...} bodies as
// rejections. Undecodable bodies count as transport failures.
func decode(resp response, v any) error {
	if env := envelopeFromBody(resp.body); env != nil {
		return env
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return transportFailure(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// decodeRaw returns the body verbatim once it is known to be JSON.
func decodeRaw(resp response) (json.RawMessage, error) {
	if env := envelopeFromBody(resp.body); env != nil {
		return nil, env
	}
	trimmed := bytes.TrimSpace(resp.body)
	if !json.Valid(trimmed) {
		return nil, transportFailure(fmt.Errorf("decode response: invalid JSON (status %d)", resp.status))
	}
	return json.RawMessage(trimmed), nil
}
