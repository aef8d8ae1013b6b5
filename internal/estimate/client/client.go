package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/config"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/metrics"
	"github.com/brakes/brakes-estimator/pkg/resilience"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 120 * time.Second
	defaultUploadTimeout = 300 * time.Second
	maxErrorBody         = 1 << 20
)

// Client is the typed boundary to the remote estimation service. Every
// failure is returned as a classified *errors.AppError.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	userAgent     string

	limiter  *rate.Limiter
	executor *resilience.Executor
	metrics  *metrics.ClientMetrics
	contract *domain.ContractChecker
	logger   *logger.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithExecutor routes idempotent reads through retry and circuit breaking
func WithExecutor(exec *resilience.Executor) Option {
	return func(c *Client) { c.executor = exec }
}

func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.logger = log.WithComponent("estimate-client") }
}

// New creates a client for the service at cfg.BaseURL
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("estimation service base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}

	c := &Client{
		baseURL:       base,
		httpClient:    &http.Client{},
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		userAgent:     cfg.UserAgent,
		logger:        logger.Nop(),
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = defaultUploadTimeout
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.ValidateContract {
		checker, err := domain.NewContractChecker()
		if err != nil {
			return nil, fmt.Errorf("build contract checker: %w", err)
		}
		c.contract = checker
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// request describes one HTTP exchange with the service
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	timeout     time.Duration
	// accept overrides the default 2xx success check
	accept func(status int) bool
	decode func(*http.Response) error
}

// read runs an idempotent request with retry and breaker protection when configured
func (c *Client) read(ctx context.Context, req request) error {
	if c.executor == nil {
		return c.send(ctx, req)
	}

	err := c.executor.Execute(ctx, req.op, func(ctx context.Context) error {
		return c.send(ctx, req)
	}, classify)
	if resilience.IsCircuitOpen(err) {
		return errors.Transport(err, "Estimation service is temporarily unavailable")
	}
	return err
}

func classify(err error) resilience.ErrorClassification {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return resilience.ErrorClassification{RecordFailure: true}
	}
	return resilience.ErrorClassification{
		Retryable:     appErr.Retryable(),
		RecordFailure: appErr.Kind == errors.KindTransport || appErr.StatusCode >= http.StatusInternalServerError,
	}
}

// send performs one attempt and normalises every failure
func (c *Client) send(ctx context.Context, req request) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(errors.KindOf(err))
		}
		c.metrics.ObserveRequest(req.op, outcome, time.Since(start))

		event := c.logger.Debug()
		if err != nil {
			event = c.logger.Warn().Err(err)
		}
		event.
			Str("operation", req.op).
			Str("method", req.method).
			Str("path", req.path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("estimation service call")
	}()

	timeout := req.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.throttle(ctx); err != nil {
		return err
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, rerr := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if rerr != nil {
		return errors.Unknown(rerr)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, derr := c.httpClient.Do(httpReq)
	if derr != nil {
		return transportError(ctx, derr)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	accepted := resp.StatusCode >= 200 && resp.StatusCode < 300
	if req.accept != nil {
		accepted = req.accept(resp.StatusCode)
	}
	if !accepted {
		return serviceError(resp)
	}
	if req.decode == nil {
		return nil
	}
	if err := req.decode(resp); err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if ctx.Err() != nil {
			return transportError(ctx, err)
		}
		return errors.Contract("Malformed response from estimation service", map[string]string{"body": err.Error()})
	}
	return nil
}

// throttle waits for a limiter token. A wait that cannot finish before the
// request deadline fails straight away as a timeout.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	r := c.limiter.Reserve()
	if !r.OK() {
		return errors.Unknown(fmt.Errorf("rate limiter burst %d admits no requests", c.limiter.Burst()))
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		r.Cancel()
		return transportError(ctx, context.DeadlineExceeded)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return transportError(ctx, ctx.Err())
	}
}

// transportError classifies failures where no usable response arrived
func transportError(ctx context.Context, err error) *errors.AppError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Transport(err, "Request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return errors.Transport(err, "Request was cancelled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.Transport(err, "Request timed out")
		}
		return errors.Transport(err, "Unable to reach the estimation service")
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Transport(err, "Connection to the estimation service was interrupted")
	}
	return errors.Unknown(err)
}

// envelope is the error body written by the service
type envelope struct {
	Error      bool            `json:"error"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details"`
	Path       string          `json:"path"`
	Detail     json.RawMessage `json:"detail"`
}

func serviceError(resp *http.Response) *errors.AppError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		message := env.Message
		details := env.Details
		if message == "" && len(env.Detail) > 0 {
			var s string
			if json.Unmarshal(env.Detail, &s) == nil {
				message = s
			} else {
				details = env.Detail
			}
		}
		if message != "" {
			appErr := errors.Service(resp.StatusCode, message)
			appErr.Path = env.Path
			if len(details) > 0 && string(details) != "null" {
				appErr.Raw = details
				appErr.Details = flattenDetails(details)
			}
			return appErr
		}
	}

	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
	}
	return errors.Service(resp.StatusCode, text)
}

// flattenDetails keeps string or flat-object details in the map form
func flattenDetails(raw json.RawMessage) map[string]string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return map[string]string{"detail": s}
	}
	var m map[string]string
	if json.Unmarshal(raw, &m) == nil {
		return m
	}
	return nil
}

func decodeJSON(out any) func(*http.Response) error {
	return func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func requireID(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.Validation(kind+" is required", map[string]string{"id": "this field is required"})
	}
	return url.PathEscape(id), nil
}
