// Package client exposes a configurable HTTP client that builds
// validated requests, follows redirects and post-processes responses.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/reqflow/client/body"
	"github.com/adamwoolhether/reqflow/client/connector"
	"github.com/adamwoolhether/reqflow/client/decode"
	"github.com/adamwoolhether/reqflow/client/download"
	"github.com/adamwoolhether/reqflow/client/errs"
	"github.com/adamwoolhether/reqflow/client/metrics"
	"github.com/adamwoolhether/reqflow/client/redirect"
	"github.com/adamwoolhether/reqflow/client/throttle"
	"github.com/adamwoolhether/reqflow/internal/validate"
)

// Version is reported in the default User-Agent.
const Version = "0.4.0"

// DefaultUserAgent is sent when neither the request nor the Client sets one.
const DefaultUserAgent = "reqflow/" + Version

// maxDrainSize caps how much of an intermediate redirect body is read
// so its connection can be reused.
const maxDrainSize = 64 << 10 // 64KB

// Client executes Requests. It's safe for concurrent use; the only
// per-call state is the redirect counter of each execution.
type Client struct {
	transport http.RoundTripper
	connector *connector.Connector
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	cfg       config
	headers   http.Header
	registry  *decode.Registry
	charset   decode.Charset
	decode    bool
}

// Build returns a Client configured by optFns.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	cfg := opts.config()
	if err := validate.Check(cfg); err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	client := &Client{
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("no-op tracer"),
		metrics:  opts.metrics,
		cfg:      cfg,
		headers:  opts.headers,
		registry: decode.DefaultRegistry(),
		charset:  decode.WHATWG{},
		decode:   !opts.noDecompression,
	}
	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracerProvider != nil {
		client.tracer = opts.tracerProvider.Tracer("github.com/adamwoolhether/reqflow/client")
	}
	if opts.charset != nil {
		client.charset = opts.charset
	}
	for _, c := range opts.codecs {
		client.registry.Register(c)
	}

	connCfg := connector.Config{
		ConnectTimeout: cfg.ConnectTimeout,
		RootCAs:        opts.rootCAs,
		TLSConfig:      opts.tlsConfig,
		Plain:          opts.plain,
		TLS:            opts.tls,
	}
	if opts.rt != nil {
		connCfg.Plain, connCfg.TLS = opts.rt, opts.rt
	}
	conn, err := connector.New(connCfg)
	if err != nil {
		return nil, fmt.Errorf("configuring connector: %w", err)
	}
	client.connector = conn

	var transport http.RoundTripper = conn
	if opts.metrics != nil {
		transport = opts.metrics.Transport(transport)
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.transport = transport

	return client, nil
}

// CloseIdleConnections closes idle connections held by the transports.
func (c *Client) CloseIdleConnections() {
	c.connector.CloseIdleConnections()
}

// Execute sends req and follows redirects until a final response
// arrives. The returned Response must be consumed or closed.
//
// Every failure is an *errs.Error; redirects are the only automatic
// re-sends.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errs.New(errs.KindBuilder, errs.ErrInvalidOption, "nil request")
	}

	policy := redirect.Policy{Max: c.cfg.MaxRedirects, Follow: c.cfg.Follow}
	timeout := c.cfg.Timeout
	if o := req.override; o.MaxRedirects != nil {
		policy.Max = *o.MaxRedirects
	}
	if o := req.override; o.Follow != nil {
		policy.Follow = *o.Follow
	}
	if o := req.override; o.Timeout != nil {
		timeout = *o.Timeout
	}

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	ctx, span := c.tracer.Start(ctx, "reqflow.execute", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("url.full", req.url.Redacted()),
	)

	resp, m, err := c.loop(ctx, req, policy, span)
	if err != nil {
		cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(errs.KindOf(err).String(), 0)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("reqflow.redirects", m.Count()),
	)
	c.observe(metrics.OutcomeOK, m.Count())

	return c.newResponse(req, resp, m.Hops(), cancel), nil
}

// loop runs the redirect state machine to completion.
func (c *Client) loop(ctx context.Context, req *Request, policy redirect.Policy, span trace.Span) (*http.Response, *redirect.Machine, error) {
	m := redirect.New(policy)
	cur := redirect.Target{
		Method: req.method,
		URL:    req.URL(),
		Header: req.header,
		Body:   req.body,
	}

	// Defaults join the first hop only, so redirects strip them like
	// any other field.
	if len(c.headers) > 0 {
		cur.Header = req.header.Clone()
		for k, vs := range c.headers {
			if _, ok := cur.Header[k]; !ok {
				cur.Header[k] = append([]string(nil), vs...)
			}
		}
	}

	for {
		m.Sending()
		resp, err := c.send(ctx, cur)
		if err != nil {
			m.Fail()
			return nil, m, err
		}

		decision, err := m.Inspect(cur, resp.StatusCode, resp.Header.Get("Location"))
		if err != nil {
			c.discard(resp)
			return nil, m, err
		}
		if decision.Done {
			return resp, m, nil
		}
		c.discard(resp)

		next := decision.Next
		c.logger.DebugContext(ctx, "following redirect",
			"status", resp.StatusCode,
			"method", next.Method,
			"from", cur.URL.Redacted(),
			"to", next.URL.Redacted(),
			"hop", m.Count(),
		)
		if len(decision.Stripped) > 0 {
			c.logger.DebugContext(ctx, "stripped credentials on redirect", "headers", decision.Stripped, "to", next.URL.Host)
		}
		span.AddEvent("redirect", trace.WithAttributes(
			attribute.Int("http.status_code", resp.StatusCode),
			attribute.String("url.full", next.URL.Redacted()),
		))

		cur = next
	}
}

// send performs one wire exchange for t.
func (c *Client) send(ctx context.Context, t redirect.Target) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err)
	}

	hr, err := http.NewRequestWithContext(ctx, t.Method, t.URL.String(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindBuilder, errs.ErrInvalidURI, err, "")
	}

	hr.Header = t.Header.Clone()
	if hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.decode && hr.Header.Get("Accept-Encoding") == "" {
		hr.Header.Set("Accept-Encoding", c.registry.AcceptEncoding())
	}
	hr.Header.Del("Content-Length")
	hr.Header.Del("Transfer-Encoding")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hr.Header))

	if err := attachBody(hr, t.Body); err != nil {
		return nil, err
	}

	resp, err := c.transport.RoundTrip(hr)
	if err != nil {
		return nil, classify(ctx, err)
	}

	return resp, nil
}

// attachBody connects b to hr. The wire framing follows b's size.
func attachBody(hr *http.Request, b body.Body) error {
	size := b.Size()
	if size == 0 {
		hr.Body = http.NoBody
		hr.ContentLength = 0
		return nil
	}

	p, err := b.Open()
	if err != nil {
		return err
	}
	hr.Body = body.NewReader(p)
	hr.ContentLength = size

	if b.Replayable() {
		hr.GetBody = func() (io.ReadCloser, error) {
			p, err := b.Open()
			if err != nil {
				return nil, err
			}
			return body.NewReader(p), nil
		}
	}

	return nil
}

// classify maps a transport failure to the error taxonomy. An expired
// execution deadline always reports as a timeout.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var e *errs.Error
		if errors.As(err, &e) && e.Kind == errs.KindTimeout {
			return err
		}
		return errs.Wrap(errs.KindTimeout, errs.ErrTimeout, err, "")
	}

	return connector.Classify(err)
}

// discard drains and closes an intermediate response.
func (c *Client) discard(resp *http.Response) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize)); err != nil {
		c.logger.Error("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

func (c *Client) observe(outcome string, redirects int) {
	if c.metrics != nil {
		c.metrics.ObserveExecution(outcome, redirects)
	}
}

// ————————————————————————————————————————————————————————————————————
// Method shorthands
// ————————————————————————————————————————————————————————————————————

// Do builds a request from method, target and opts and executes it.
func (c *Client) Do(ctx context.Context, method, target string, opts ...RequestOption) (*Response, error) {
	req, err := NewRequest(method, target, opts...)
	if err != nil {
		return nil, err
	}

	return c.Execute(ctx, req)
}

// Get executes a GET request for target.
func (c *Client) Get(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, target, opts...)
}

// Head executes a HEAD request for target.
func (c *Client) Head(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodHead, target, opts...)
}

// Delete executes a DELETE request for target.
func (c *Client) Delete(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, target, opts...)
}

// Post executes a POST request for target.
func (c *Client) Post(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, target, opts...)
}

// Put executes a PUT request for target.
func (c *Client) Put(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, target, opts...)
}

// Patch executes a PATCH request for target.
func (c *Client) Patch(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, target, opts...)
}

// ————————————————————————————————————————————————————————————————————
// Downloads
// ————————————————————————————————————————————————————————————————————

// Download executes req and streams a 2xx response body to destPath.
// Any other status returns an [*UnexpectedStatusError]. A failure
// part-way through leaves the partial file in place.
func (c *Client) Download(ctx context.Context, req *Request, destPath string, opts ...DownloadOption) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	start := time.Now()
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	if err := resp.ExpectSuccess(); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	if err := resp.ToFile(ctx, destPath, opts...); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	c.logger.Debug("download finished", "path", destPath, "elapsed", time.Since(start).Round(time.Millisecond))

	return nil
}

// DownloadAsync starts Download in the background and returns a handle
// to it. With [WithBatch] the handle's queue bounds concurrency for
// further downloads added through [DownloadResult.Add].
func (c *Client) DownloadAsync(ctx context.Context, req *Request, destPath string, opts ...DownloadOption) (*DownloadResult, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}
	if req == nil {
		return nil, errs.New(errs.KindBuilder, errs.ErrInvalidOption, "nil request")
	}

	q, err := download.QueueFor(opts...)
	if err != nil {
		return nil, fmt.Errorf("applying download option: %w", err)
	}

	task := q.Start(ctx, func(ctx context.Context) error {
		return c.Download(ctx, req, destPath, opts...)
	})

	adder := func(req *Request, destPath string, opts ...DownloadOption) (*DownloadResult, error) {
		return c.DownloadAsync(ctx, req, destPath, opts...)
	}

	return download.NewResult[*Request](task, adder), nil
}
