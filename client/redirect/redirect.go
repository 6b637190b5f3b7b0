// Package redirect decides whether and how a request is re-issued after a
// 3xx response.
//
// A [Machine] lives for one execution. The caller sends a [Target], hands
// the response status and Location to [Machine.Inspect] and either stops
// or sends the returned next Target. Inspect performs no I/O, so every
// failure is reported before the follow-up request is attempted.
package redirect

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamwoolhether/reqflow/client/body"
	"github.com/adamwoolhether/reqflow/client/errs"
)

// DefaultMax is the redirect limit used when none is configured.
const DefaultMax = 10

// Phase is the position of a Machine in its lifecycle.
type Phase int

const (
	PhaseSending Phase = iota
	PhaseInspecting
	PhaseRedirecting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSending:
		return "sending"
	case PhaseInspecting:
		return "inspecting"
	case PhaseRedirecting:
		return "redirecting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy configures redirect following.
type Policy struct {
	Max    int
	Follow bool
}

// Target is the part of a request a redirect may rewrite.
type Target struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   body.Body
}

// Hop records one followed redirect.
type Hop struct {
	Status int
	Method string
	From   *url.URL
	To     *url.URL
}

// Decision is the outcome of inspecting a response.
type Decision struct {
	// Done is set when the response is final.
	Done bool
	// Next is the request to send when Done is false.
	Next Target
	// Stripped lists credential headers removed from Next.
	Stripped []string
}

// Machine tracks the redirects followed within a single execution.
type Machine struct {
	policy Policy
	phase  Phase
	hops   []Hop
}

// New returns a Machine in the sending phase.
func New(p Policy) *Machine {
	if p.Max < 0 {
		p.Max = 0
	}

	return &Machine{policy: p, phase: PhaseSending}
}

// Phase reports the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Count reports how many redirects have been followed.
func (m *Machine) Count() int { return len(m.hops) }

// Hops returns the redirects followed so far, oldest first.
func (m *Machine) Hops() []Hop { return append([]Hop(nil), m.hops...) }

// Fail moves the Machine to the failed phase, e.g. after a transport error.
func (m *Machine) Fail() { m.phase = PhaseFailed }

// Inspect decides what follows the response to cur.
func (m *Machine) Inspect(cur Target, status int, location string) (Decision, error) {
	m.phase = PhaseInspecting

	if !m.policy.Follow || !Followable(status) {
		m.phase = PhaseDone
		return Decision{Done: true}, nil
	}

	to, err := resolve(cur.URL, location)
	if err != nil {
		m.phase = PhaseFailed
		return Decision{}, err
	}

	if len(m.hops) >= m.policy.Max {
		m.phase = PhaseFailed
		return Decision{}, errs.New(errs.KindRedirect, errs.ErrTooManyRedirects,
			fmt.Sprintf("stopped after %d redirects", m.policy.Max))
	}

	next, err := rewrite(cur, status, to)
	if err != nil {
		m.phase = PhaseFailed
		return Decision{}, err
	}

	stripped := stripSensitive(next.Header, cur.URL, to)

	m.hops = append(m.hops, Hop{Status: status, Method: next.Method, From: cur.URL, To: to})
	m.phase = PhaseRedirecting

	return Decision{Next: next, Stripped: stripped}, nil
}

// Sending marks the start of the next attempt.
func (m *Machine) Sending() { m.phase = PhaseSending }

// Followable reports whether status is a redirect this package follows.
// 300, 304, 305 and 306 are returned to the caller as-is.
func Followable(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}

	return false
}

func resolve(base *url.URL, location string) (*url.URL, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errs.New(errs.KindRedirect, errs.ErrInvalidLocation, "missing Location header")
	}

	ref, err := url.Parse(location)
	if err != nil {
		return nil, errs.Wrap(errs.KindRedirect, errs.ErrInvalidLocation, err, location)
	}

	to := base.ResolveReference(ref)
	if to.Scheme != "http" && to.Scheme != "https" {
		return nil, errs.New(errs.KindRedirect, errs.ErrInvalidLocation, fmt.Sprintf("unsupported scheme %q", to.Scheme))
	}
	if to.Host == "" {
		return nil, errs.New(errs.KindRedirect, errs.ErrInvalidLocation, "location has no host")
	}

	// A Location without a fragment inherits the original one (RFC 9110 10.2.2).
	if to.Fragment == "" && base.Fragment != "" {
		to.Fragment = base.Fragment
		to.RawFragment = base.RawFragment
	}

	return to, nil
}

// contentHeaders describe a body and are dropped with it.
var contentHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Encoding",
	"Content-Language",
	"Content-Disposition",
	"Transfer-Encoding",
}

func rewrite(cur Target, status int, to *url.URL) (Target, error) {
	next := Target{
		Method: cur.Method,
		URL:    to,
		Header: cur.Header.Clone(),
		Body:   cur.Body,
	}
	if next.Header == nil {
		next.Header = http.Header{}
	}
	if next.Body == nil {
		next.Body = body.Empty()
	}

	switch status {
	case http.StatusSeeOther:
		toGet(&next)
	case http.StatusMovedPermanently, http.StatusFound:
		if cur.Method == http.MethodPost || cur.Method == http.MethodPatch {
			toGet(&next)
			break
		}
		if err := checkReplay(next.Body); err != nil {
			return Target{}, err
		}
	case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		if err := checkReplay(next.Body); err != nil {
			return Target{}, err
		}
	}

	return next, nil
}

func toGet(t *Target) {
	t.Method = http.MethodGet
	t.Body = body.Empty()
	for _, h := range contentHeaders {
		t.Header.Del(h)
	}
}

func checkReplay(b body.Body) error {
	if b.Kind() == body.KindEmpty || b.Replayable() {
		return nil
	}

	return errs.New(errs.KindRedirect, errs.ErrBodyNotReplayable, fmt.Sprintf("%s body cannot be re-sent", b.Kind()))
}

// SensitiveHeaders carry credentials and never follow a request to a
// different host or over a downgraded scheme.
var SensitiveHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Cookie2",
	"Www-Authenticate",
}

func stripSensitive(h http.Header, from, to *url.URL) []string {
	crossHost := !strings.EqualFold(from.Hostname(), to.Hostname())
	downgrade := from.Scheme == "https" && to.Scheme == "http"
	if !crossHost && !downgrade {
		return nil
	}

	var stripped []string
	for _, name := range SensitiveHeaders {
		if _, ok := h[name]; ok {
			h.Del(name)
			stripped = append(stripped, name)
		}
	}

	return stripped
}
