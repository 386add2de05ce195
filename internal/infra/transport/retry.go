// Package transport wraps every outbound call to the remote assistant
// service and owns the backoff policy. It is stateless between calls:
// each Do carries its own attempt counter and nothing leaks across
// unrelated requests.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"analytics-ai-core/internal/infra/metrics"
)

// ErrorKind classifies a transport failure for the layers above.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindNetwork     ErrorKind = "network"
	KindRemoteFault ErrorKind = "remote_fault"
	KindFatal       ErrorKind = "fatal"
)

// Error is the typed failure surfaced by the transport layer.
type Error struct {
	Kind     ErrorKind
	Status   int    // HTTP status when the remote answered, 0 otherwise
	Message  string // remote-supplied message, verbatim when available
	Attempts int    // attempts consumed, populated on KindFatal
	cause    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("transport %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("transport %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("transport %s (status %d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.cause }

// IsRateLimited reports whether err is (or wraps) a rate-limit failure,
// including a fatal error whose final attempt was rate-limited.
func IsRateLimited(err error) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == KindRateLimited || te.Status == http.StatusTooManyRequests
}

const (
	defaultBaseDelay  = 5 * time.Second
	defaultMaxRetries = 5
	jitterWindow      = time.Second
)

// Client retries rate-limited and connection-level failures with
// exponential backoff and jitter. Sleep and jitter are injectable so
// tests run instantaneously.
type Client struct {
	httpClient *http.Client
	baseDelay  time.Duration
	maxRetries int
	sleep      func(req *http.Request, d time.Duration) error
	jitter     func() time.Duration
	log        *zerolog.Logger
}

// Option tweaks a Client. Production code normally needs none.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithSleep replaces the delay primitive. The function receives the
// in-flight request so it can honor its context.
func WithSleep(fn func(req *http.Request, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithJitter replaces the jitter source.
func WithJitter(fn func() time.Duration) Option {
	return func(c *Client) { c.jitter = fn }
}

func NewClient(log *zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseDelay:  defaultBaseDelay,
		maxRetries: defaultMaxRetries,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(jitterWindow)))
		},
		log: log,
	}
	c.sleep = func(req *http.Request, d time.Duration) error {
		select {
		case <-req.Context().Done():
			return req.Context().Err()
		case <-time.After(d):
			return nil
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends req, retrying on rate limits and connection failures.
// Requests with a body must be built with a rewindable body
// (http.NewRequest over a bytes.Reader sets GetBody automatically).
// Responses with non-2xx statuses are consumed and turned into *Error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return nil, &Error{Kind: KindFatal, Message: "request body is not rewindable", cause: err}
		}

		resp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, &Error{Kind: KindFatal, Message: "request cancelled", cause: ctxErr, Attempts: attempt + 1}
			}
			if attempt >= c.maxRetries {
				metrics.IncTransportExhausted()
				return nil, &Error{Kind: KindFatal, Attempts: attempt + 1, Message: "retries exhausted", cause: err}
			}
			c.backoff(req, attempt, "network error")
			continue
		}

		if resp.StatusCode < 300 {
			return resp, nil
		}

		status := resp.StatusCode
		msg := readErrorMessage(resp.Body)
		resp.Body.Close()

		if status == http.StatusTooManyRequests {
			metrics.IncRateLimited()
			if attempt >= c.maxRetries {
				metrics.IncTransportExhausted()
				return nil, &Error{Kind: KindFatal, Status: status, Attempts: attempt + 1, Message: "retries exhausted: " + msg}
			}
			c.backoff(req, attempt, "rate limited")
			continue
		}

		// Any other remote error fails immediately without consuming
		// the retry budget.
		return nil, &Error{Kind: KindRemoteFault, Status: status, Message: msg}
	}
}

func (c *Client) backoff(req *http.Request, attempt int, reason string) {
	delay := c.baseDelay*(1<<attempt) + c.jitter()
	metrics.IncTransportRetry()
	c.log.Warn().
		Str("reason", reason).
		Int("attempt", attempt+1).
		Dur("delay", delay).
		Str("url", req.URL.Path).
		Msg("retrying remote call")
	_ = c.sleep(req, delay)
}

// rewind returns req itself on the first attempt and a clone with a
// fresh body on retries.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		if req.Body != nil {
			return nil, errors.New("no GetBody on request with body")
		}
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// readErrorMessage extracts the machine-readable message the remote
// attaches to error responses, falling back to the raw body.
func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return string(b)
}
