package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*FetchOptions)(nil)

// FetchOptions bounds every network call made by the feed clients and the artifact fetcher.
type FetchOptions struct {
	// DialTimeout bounds establishing the TCP connection.
	DialTimeout time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`

	// HeaderTimeout bounds waiting for response headers, TLS handshake included.
	HeaderTimeout time.Duration `json:"header-timeout" mapstructure:"header-timeout"`

	// DownloadTimeout bounds a whole artifact transfer.
	DownloadTimeout time.Duration `json:"download-timeout" mapstructure:"download-timeout"`

	// ChunkSize is the size of each write into the inactive slot.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`
}

func NewFetchOptions() *FetchOptions {
	return &FetchOptions{
		DialTimeout:     10 * time.Second,
		HeaderTimeout:   30 * time.Second,
		DownloadTimeout: 10 * time.Minute,
		ChunkSize:       4096,
	}
}

func (o *FetchOptions) Validate() []error {
	errors := []error{}

	if o.DialTimeout <= 0 || o.HeaderTimeout <= 0 || o.DownloadTimeout <= 0 {
		errors = append(errors, fmt.Errorf("fetch timeouts must be positive"))
	}
	if o.ChunkSize < 512 {
		errors = append(errors, fmt.Errorf("--fetch.chunk-size must be at least 512 bytes"))
	}

	return errors
}

func (o *FetchOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.DialTimeout, "fetch.dial-timeout", o.DialTimeout, "Timeout for establishing connections.")
	fs.DurationVar(&o.HeaderTimeout, "fetch.header-timeout", o.HeaderTimeout, "Timeout for receiving response headers.")
	fs.DurationVar(&o.DownloadTimeout, "fetch.download-timeout", o.DownloadTimeout, "Timeout for a complete artifact download.")
	fs.IntVar(&o.ChunkSize, "fetch.chunk-size", o.ChunkSize, "Bytes written to the inactive slot per chunk.")
}
