package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/reqflow/client"
	"github.com/adamwoolhether/reqflow/client/throttle"
	"github.com/adamwoolhether/reqflow/internal/validate"
)

// Profile is the YAML form of the client options. Unset fields keep the
// client defaults.
//
//	max_redirects: 5
//	timeout: 10s
//	user_agent: my-tool/1.0
//	headers:
//	  Accept: application/json
//	throttle:
//	  rps: 10
//	  burst: 5
type Profile struct {
	MaxRedirects    *int              `yaml:"max_redirects,omitempty" validate:"omitnil,gte=0,lte=100"`
	FollowRedirects *bool             `yaml:"follow_redirects,omitempty"`
	ConnectTimeout  *time.Duration    `yaml:"connect_timeout,omitempty" validate:"omitnil,gte=0"`
	Timeout         *time.Duration    `yaml:"timeout,omitempty" validate:"omitnil,gte=0"`
	UserAgent       string            `yaml:"user_agent,omitempty" validate:"omitempty,printascii"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Throttle        *throttle.Config  `yaml:"throttle,omitempty"`
	BodyLimit       *int64            `yaml:"body_limit,omitempty" validate:"omitnil,gte=0"`
	NoDecompression bool              `yaml:"no_decompression,omitempty"`
}

// LoadProfile reads and validates the profile at path.
func LoadProfile(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()

	return decodeProfile(f)
}

func decodeProfile(r io.Reader) (Profile, error) {
	var p Profile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}

	if err := validate.Check(p); err != nil {
		return Profile{}, fmt.Errorf("validating profile: %w", err)
	}

	return p, nil
}

// Options converts the profile into client options.
func (p Profile) Options() []client.Option {
	var opts []client.Option

	if p.MaxRedirects != nil {
		opts = append(opts, client.WithMaxRedirects(*p.MaxRedirects))
	}
	if p.FollowRedirects != nil && !*p.FollowRedirects {
		opts = append(opts, client.WithNoFollowRedirects())
	}
	if p.ConnectTimeout != nil {
		opts = append(opts, client.WithConnectTimeout(*p.ConnectTimeout))
	}
	if p.Timeout != nil {
		opts = append(opts, client.WithTimeout(*p.Timeout))
	}
	if p.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(p.UserAgent))
	}
	if len(p.Headers) > 0 {
		h := make(http.Header, len(p.Headers))
		for k, v := range p.Headers {
			h.Set(k, v)
		}
		opts = append(opts, client.WithDefaultHeaders(h))
	}
	if p.Throttle != nil {
		opts = append(opts, client.WithThrottle(p.Throttle.RPS, p.Throttle.Burst))
	}
	if p.BodyLimit != nil {
		opts = append(opts, client.WithBodyLimit(*p.BodyLimit))
	}
	if p.NoDecompression {
		opts = append(opts, client.WithNoDecompression())
	}

	return opts
}

// Encode renders the profile as YAML.
func (p Profile) Encode() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}

	return buf.Bytes(), nil
}
