package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

// Fetcher downloads artifacts over HTTP. It never follows redirects on its
// own; FollowRedirect performs the single hop the install engine may ask for.
type Fetcher struct {
	client          *http.Client
	downloadTimeout time.Duration
	// tokens maps a host to the bearer token it receives.
	tokens map[string]string
}

var _ core.Fetcher = (*Fetcher)(nil)

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithBearerToken sends token to host, and only to host.
func WithBearerToken(host, token string) Option {
	return func(f *Fetcher) {
		if token != "" {
			f.tokens[host] = token
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = rt
	}
}

// New creates a Fetcher bounded by opts.
func New(opts *options.FetchOptions, fns ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport:     NewTransport(opts),
			CheckRedirect: noFollow,
		},
		downloadTimeout: opts.DownloadTimeout,
		tokens:          make(map[string]string),
	}
	for _, fn := range fns {
		fn(f)
	}
	return f
}

// Open requests ref. A 2xx answer yields the body; a redirect yields a
// *core.RedirectError carrying the new location.
func (f *Fetcher) Open(ctx context.Context, ref string) (*core.Stream, error) {
	return f.open(ctx, "open", ref)
}

// FollowRedirect requests ref and, when it answers with a redirect, requests
// the location once. A second redirect is ErrRedirectLimit.
func (f *Fetcher) FollowRedirect(ctx context.Context, ref string) (*core.Stream, error) {
	stream, err := f.open(ctx, "follow redirect", ref)

	var re *core.RedirectError
	if !errors.As(err, &re) {
		return stream, err
	}

	log.FromContext(ctx).Debug("Following redirect", "from", ref, "to", re.Location, "status", re.Status)

	stream, err = f.open(ctx, "follow redirect", re.Location)
	if errors.As(err, &re) {
		return nil, core.NewError("follow redirect", core.ErrRedirectLimit, re)
	}
	return stream, err
}

func (f *Fetcher) open(ctx context.Context, op, ref string) (*core.Stream, error) {
	target, err := url.Parse(ref)
	if err != nil || target.Host == "" {
		return nil, core.Errorf(op, core.ErrProtocol, "invalid artifact reference %q", ref)
	}

	ctx, cancel := context.WithTimeout(ctx, f.downloadTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		cancel()
		return nil, core.NewError(op, core.ErrProtocol, err)
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", "application/octet-stream")
	if token, ok := f.tokens[target.Host]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, core.NewError(op, core.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &core.Stream{
			Body: &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
			Size: resp.ContentLength,
		}, nil

	case isRedirect(resp.StatusCode):
		discard(resp.Body)
		cancel()

		loc, err := resp.Location()
		if err != nil {
			return nil, core.Errorf(op, core.ErrProtocol, "redirect %d without usable location: %v", resp.StatusCode, err)
		}
		return nil, &core.RedirectError{Reference: ref, Location: loc.String(), Status: resp.StatusCode}

	default:
		discard(resp.Body)
		cancel()
		return nil, core.Errorf(op, core.ErrProtocol, "unexpected HTTP status: %s", resp.Status)
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	if err := body.Close(); err != nil {
		log.Debug("Error closing response body", "error", err)
	}
}

// cancelOnClose releases the per-download deadline with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	if err := c.ReadCloser.Close(); err != nil {
		return fmt.Errorf("close artifact body: %w", err)
	}
	return nil
}
