package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/reqflow/client/connector"
	"github.com/adamwoolhether/reqflow/client/decode"
	"github.com/adamwoolhether/reqflow/client/metrics"
	"github.com/adamwoolhether/reqflow/client/redirect"
	"github.com/adamwoolhether/reqflow/client/throttle"
)

// Defaults applied by [Build].
const (
	DefaultMaxRedirects   = redirect.DefaultMax
	DefaultConnectTimeout = connector.DefaultConnectTimeout
	DefaultTimeout        = 30 * time.Second
	DefaultBodyLimit      = 2 << 20 // 2MiB
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	maxRedirects    *int
	noFollow        bool
	connectTimeout  *time.Duration
	timeout         *time.Duration
	userAgent       *string
	rootCAs         *x509.CertPool
	tlsConfig       *tls.Config
	headers         http.Header
	rt              http.RoundTripper
	plain           http.RoundTripper
	tls             http.RoundTripper
	throttle        *throttle.Config
	logger          *slog.Logger
	tracerProvider  trace.TracerProvider
	metrics         *metrics.Metrics
	bodyLimit       *int64
	noDecompression bool
	codecs          []decode.Codec
	charset         decode.Charset
}

// config is the validated, resolved form of options.
type config struct {
	MaxRedirects   int           `yaml:"max_redirects" validate:"gte=0,lte=100"`
	Follow         bool          `yaml:"follow_redirects"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gte=0"`
	UserAgent      string        `yaml:"user_agent" validate:"printascii"`
	BodyLimit      int64         `yaml:"body_limit" validate:"gte=0"`
}

func (o options) config() config {
	cfg := config{
		MaxRedirects:   DefaultMaxRedirects,
		Follow:         !o.noFollow,
		ConnectTimeout: DefaultConnectTimeout,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		BodyLimit:      DefaultBodyLimit,
	}
	if o.maxRedirects != nil {
		cfg.MaxRedirects = *o.maxRedirects
	}
	if o.connectTimeout != nil {
		cfg.ConnectTimeout = *o.connectTimeout
	}
	if o.timeout != nil {
		cfg.Timeout = *o.timeout
	}
	if o.userAgent != nil {
		cfg.UserAgent = *o.userAgent
	}
	if o.bodyLimit != nil {
		cfg.BodyLimit = *o.bodyLimit
	}

	return cfg
}

// WithMaxRedirects sets how many redirects one execution may follow.
// The (n+1)th redirect fails with [ErrTooManyRedirects].
func WithMaxRedirects(n int) Option {
	return func(c *options) error {
		c.maxRedirects = &n
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
// 3xx responses are returned to the caller as-is.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollow = true
		return nil
	}
}

// WithConnectTimeout bounds dialing and the TLS handshake of the
// default transports.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *options) error {
		c.connectTimeout = &d
		return nil
	}
}

// WithTimeout bounds a whole execution, from the first byte sent
// until the response body is consumed. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		c.timeout = &d
		return nil
	}
}

// WithUserAgent sets the User-Agent sent when a request has none.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = &header
		return nil
	}
}

// WithRootCAs sets the trust store of the TLS strategy.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *options) error {
		if pool == nil {
			return errors.New("cert pool must not be nil")
		}
		c.rootCAs = pool
		return nil
	}
}

// WithTLSConfig sets the base TLS configuration of the TLS strategy.
// The value is cloned.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		c.tlsConfig = cfg.Clone()
		return nil
	}
}

// WithDefaultHeaders adds fields to every request that doesn't set them.
func WithDefaultHeaders(h http.Header) Option {
	return func(c *options) error {
		if c.headers == nil {
			c.headers = make(http.Header)
		}
		for k, vs := range h {
			for _, v := range vs {
				if err := (&requestOpts{header: c.headers}).set(k, v); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] used for both schemes.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithPlainTransport replaces the strategy used for http targets.
func WithPlainTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.plain = rt
		return nil
	}
}

// WithTLSTransport replaces the strategy used for https targets.
func WithTLSTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.tls = rt
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithTracerProvider records an execution span with a tracer from tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		c.tracerProvider = tp
		return nil
	}
}

// WithMetrics records executions and hops in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *options) error {
		if m == nil {
			return errors.New("metrics must not be nil")
		}
		c.metrics = m
		return nil
	}
}

// WithBodyLimit caps how many bytes the in-memory terminals read.
// Zero removes the cap. [Response.ToFile] and [Response.Reader] are
// never capped.
func WithBodyLimit(n int64) Option {
	return func(c *options) error {
		c.bodyLimit = &n
		return nil
	}
}

// WithNoDecompression returns response bodies as received and stops
// the automatic Accept-Encoding header.
func WithNoDecompression() Option {
	return func(c *options) error {
		c.noDecompression = true
		return nil
	}
}

// WithCodecs registers additional content codings, replacing built-in
// codecs of the same name.
func WithCodecs(codecs ...decode.Codec) Option {
	return func(c *options) error {
		for _, codec := range codecs {
			if codec == nil {
				return errors.New("codec must not be nil")
			}
		}
		c.codecs = append(c.codecs, codecs...)
		return nil
	}
}

// WithCharsetDecoder replaces the charset conversion used by [Response.Text].
func WithCharsetDecoder(d decode.Charset) Option {
	return func(c *options) error {
		if d == nil {
			return errors.New("charset decoder must not be nil")
		}
		c.charset = d
		return nil
	}
}
