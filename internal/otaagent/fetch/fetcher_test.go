package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

const image = "firmware-image-bytes"

func newContentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			http.Error(w, "credentials must not be forwarded", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, image)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readAll(t *testing.T, s *core.Stream) string {
	t.Helper()
	defer s.Body.Close()
	b, err := io.ReadAll(s.Body)
	require.NoError(t, err)
	return string(b)
}

func TestOpenContent(t *testing.T) {
	srv := newContentServer(t)
	f := New(options.NewFetchOptions())

	s, err := f.Open(context.Background(), srv.URL+"/firmware.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(image)), s.Size)
	assert.Equal(t, image, readAll(t, s))
}

func TestOpenSurfacesRedirect(t *testing.T) {
	target := newContentServer(t)
	srv := httptest.NewServer(http.RedirectHandler(target.URL+"/blob", http.StatusFound))
	defer srv.Close()

	f := New(options.NewFetchOptions())
	s, err := f.Open(context.Background(), srv.URL+"/asset")
	assert.Nil(t, s)

	var re *core.RedirectError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusFound, re.Status)
	assert.Equal(t, target.URL+"/blob", re.Location)
	assert.NotErrorIs(t, err, core.ErrNetwork)
}

func TestFollowRedirectOneHop(t *testing.T) {
	target := newContentServer(t)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		http.Redirect(w, r, target.URL+"/blob", http.StatusFound)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := New(options.NewFetchOptions(), WithBearerToken(u.Host, "secret"))

	s, err := f.FollowRedirect(context.Background(), srv.URL+"/asset")
	require.NoError(t, err)
	assert.Equal(t, image, readAll(t, s))
	assert.Equal(t, 1, hits)
}

func TestFollowRedirectContentDirectly(t *testing.T) {
	srv := newContentServer(t)
	f := New(options.NewFetchOptions())

	s, err := f.FollowRedirect(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, image, readAll(t, s))
}

func TestFollowRedirectLimit(t *testing.T) {
	var second *httptest.Server
	second = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, second.URL+"/again", http.StatusTemporaryRedirect)
	}))
	defer second.Close()
	first := httptest.NewServer(http.RedirectHandler(second.URL+"/hop", http.StatusFound))
	defer first.Close()

	f := New(options.NewFetchOptions())
	s, err := f.FollowRedirect(context.Background(), first.URL)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, core.ErrRedirectLimit)
}

func TestOpenErrors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		ref  string
		kind error
	}{
		{"status", notFound.URL, core.ErrProtocol},
		{"unreachable", closedURL, core.ErrNetwork},
		{"bad reference", "::not a url", core.ErrProtocol},
		{"relative reference", "/firmware.bin", core.ErrProtocol},
	}

	f := New(options.NewFetchOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Open(context.Background(), tt.ref)
			assert.ErrorIs(t, err, tt.kind)
			var re *core.RedirectError
			assert.False(t, errors.As(err, &re))
		})
	}
}

func TestRedirectWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	_, err := New(options.NewFetchOptions()).Open(context.Background(), srv.URL)
	assert.ErrorIs(t, err, core.ErrProtocol)
}
