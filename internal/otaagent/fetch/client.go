package fetch

import (
	"net"
	"net/http"
	"time"

	"github.com/autopeer-io/ota-agent/pkg/options"
	"github.com/autopeer-io/ota-agent/pkg/version"
)

// UserAgent is sent with every request the agent makes.
func UserAgent() string {
	return "cpeer-ota-agent/" + version.Get().GitVersion
}

// NewTransport returns a transport whose connection setup is bounded by opts.
func NewTransport(opts *options.FetchOptions) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.HeaderTimeout,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          4,
	}
}

// noFollow keeps redirects visible to the caller.
func noFollow(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
