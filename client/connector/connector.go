// Package connector selects a transport strategy by URI scheme and maps
// transport failures onto the errs taxonomy.
//
// http targets go through the plain strategy and https targets through the
// TLS strategy, which negotiates HTTP/2 via ALPN when the server offers
// it. Either strategy can be replaced with any [http.RoundTripper].
package connector

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"github.com/adamwoolhether/reqflow/client/errs"
)

// DefaultConnectTimeout bounds dialing and the TLS handshake.
const DefaultConnectTimeout = 10 * time.Second

// Config selects or parameterizes the strategies.
type Config struct {
	ConnectTimeout time.Duration
	// RootCAs is the trust store of the TLS strategy. nil uses the host's.
	RootCAs *x509.CertPool
	// TLSConfig is cloned as the base of the TLS strategy's configuration.
	TLSConfig *tls.Config

	// Plain and TLS override the built-in strategies.
	Plain http.RoundTripper
	TLS   http.RoundTripper
}

// Connector routes requests to the strategy matching their scheme.
type Connector struct {
	plain http.RoundTripper
	tls   http.RoundTripper
}

// New builds a Connector, constructing default strategies for any that
// weren't supplied.
func New(cfg Config) (*Connector, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	c := &Connector{plain: cfg.Plain, tls: cfg.TLS}

	if c.plain == nil {
		c.plain = PlainTransport(cfg.ConnectTimeout)
	}

	if c.tls == nil {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLSConfig != nil {
			tlsCfg = cfg.TLSConfig.Clone()
		}
		if cfg.RootCAs != nil {
			tlsCfg.RootCAs = cfg.RootCAs
		}

		t, err := TLSTransport(cfg.ConnectTimeout, tlsCfg)
		if err != nil {
			return nil, err
		}
		c.tls = t
	}

	return c, nil
}

// PlainTransport returns the default cleartext strategy. Compression is
// left to the response decoders, so the transport never asks for it.
func PlainTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer(connectTimeout).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
}

// TLSTransport returns the default TLS strategy with HTTP/2 enabled.
func TLSTransport(connectTimeout time.Duration, cfg *tls.Config) (*http.Transport, error) {
	t := PlainTransport(connectTimeout)
	t.TLSClientConfig = cfg
	t.TLSHandshakeTimeout = connectTimeout

	if err := http2.ConfigureTransport(t); err != nil {
		return nil, fmt.Errorf("configuring http2: %w", err)
	}

	return t, nil
}

func dialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
}

// Strategy returns the transport for scheme.
func (c *Connector) Strategy(scheme string) (http.RoundTripper, error) {
	switch scheme {
	case "http":
		return c.plain, nil
	case "https":
		return c.tls, nil
	default:
		return nil, errs.New(errs.KindBuilder, errs.ErrUnsupportedScheme, fmt.Sprintf("scheme %q", scheme))
	}
}

// RoundTrip sends r through its strategy. Failures are returned as
// *errs.Error.
func (c *Connector) RoundTrip(r *http.Request) (*http.Response, error) {
	rt, err := c.Strategy(r.URL.Scheme)
	if err != nil {
		return nil, err
	}

	resp, err := rt.RoundTrip(r)
	if err != nil {
		return nil, Classify(err)
	}

	return resp, nil
}

// CloseIdleConnections releases pooled connections of both strategies.
func (c *Connector) CloseIdleConnections() {
	type closer interface{ CloseIdleConnections() }

	for _, rt := range []http.RoundTripper{c.plain, c.tls} {
		if ci, ok := rt.(closer); ok {
			ci.CloseIdleConnections()
		}
	}
}

// Classify maps a transport failure to an *errs.Error. Errors already
// classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	var (
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		netErr     net.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, errs.ErrTimeout, err, "")
	case errors.As(err, &recordErr), errors.As(err, &alertErr), errors.As(err, &verifyErr),
		errors.As(err, &authErr), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return errs.Wrap(errs.KindConnect, errs.ErrTLSHandshakeFailed, err, "")
	case errors.Is(err, syscall.ECONNREFUSED):
		return errs.Wrap(errs.KindConnect, errs.ErrConnectionRefused, err, "")
	case errors.As(err, &netErr) && netErr.Timeout():
		return errs.Wrap(errs.KindTimeout, errs.ErrTimeout, err, "")
	default:
		return errs.Wrap(errs.KindTransport, errs.ErrTransport, err, "")
	}
}
