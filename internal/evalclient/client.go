package evalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ErrBackend marks every failure of the evaluation service. Callers treat it as
// "no data" and substitute zero or empty values.
var ErrBackend = errors.New("evaluation backend error")

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.MaxConnsPerHost = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDial replaces the transport dialer; tests pass an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset clears server-side analysis state. It is never retried.
func (c *Client) Reset(ctx context.Context) error {
	var env errorEnvelope
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/reset", struct{}{}, &env, false); err != nil {
		return err
	}
	if env.Error != "" {
		return fmt.Errorf("%w: %s", ErrBackend, env.Error)
	}
	return nil
}

func (c *Client) EvaluatePosition(ctx context.Context, fen string) (int, error) {
	var resp PositionResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/position-eval", PositionRequest{FEN: fen}, &resp, true); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("%w: %s", ErrBackend, resp.Error)
	}
	return int(resp.Evaluation), nil
}

// EvaluateGame returns one score per move, each for the position after that move.
func (c *Client) EvaluateGame(ctx context.Context, startFEN string, lans []string) ([]int, error) {
	if lans == nil {
		lans = []string{}
	}
	var resp GameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/eval/game", GameRequest{FEN: startFEN, Moves: lans}, &resp, true); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrBackend, resp.Error)
	}
	return ints(resp.Evaluations), nil
}

// Previews asks for count engine continuations from fen searched to depth plies.
// The backend answers with a bare array, or an object carrying "error".
func (c *Client) Previews(ctx context.Context, fen string, count, depth int) ([]Preview, error) {
	var raw json.RawMessage
	req := PreviewRequest{FEN: fen, PreviewCount: count, Depth: depth}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/eval/previews", req, &raw, true); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env errorEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: decode previews: %v", ErrBackend, err)
		}
		if env.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrBackend, env.Error)
		}
		return []Preview{}, nil
	}
	var out []Preview
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("%w: decode previews: %v", ErrBackend, err)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			lastErr = fmt.Errorf("%w: request failed: %v", ErrBackend, err)
			if attempt == attempts || !retry {
				return lastErr
			}
			c.logger.Debug("eval_request_retry", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			body := string(resp.Body())
			lastErr = fmt.Errorf("%w: status=%d body=%s", ErrBackend, status, truncate(body, 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return lastErr
			}
			c.logger.Debug("eval_request_retry", zap.String("path", path), zap.Int("attempt", attempt), zap.Int("status", status))
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil && len(bytes.TrimSpace(resp.Body())) > 0 {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("%w: decode response: %v", ErrBackend, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: unknown error", ErrBackend)
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
