package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Manifest is the latest-release document kept in the bucket:
//
//	{"version": "v1.0.8", "assets": [{"name": "firmware.bin", "key": "v1.0.8/firmware.bin", "size": 1048576, "sha256": "..."}]}
type Manifest struct {
	Version string          `json:"version"`
	Assets  []ManifestAsset `json:"assets"`
}

type ManifestAsset struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
}

// S3Feed reads the release manifest from an object store and hands out
// presigned links for its assets.
type S3Feed struct {
	store       ObjectStore
	manifestKey string
	expiry      time.Duration
}

var _ Feed = (*S3Feed)(nil)

func NewS3Feed(store ObjectStore, manifestKey string, expiry time.Duration) *S3Feed {
	return &S3Feed{store: store, manifestKey: manifestKey, expiry: expiry}
}

func (f *S3Feed) Latest(ctx context.Context) (*core.Release, error) {
	obj, err := f.store.GetObject(ctx, f.manifestKey)
	if err != nil {
		return nil, core.NewError("read manifest", core.ErrNetwork, err)
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil {
			log.Warn("Error closing manifest object", "error", cerr)
		}
	}()

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(obj, maxReleaseBody)).Decode(&m); err != nil {
		// minio reports transport and S3 errors on the first read.
		return nil, core.NewError("read manifest", core.ErrProtocol, fmt.Errorf("decode %s: %w", f.manifestKey, err))
	}
	if m.Version == "" {
		return nil, core.Errorf("read manifest", core.ErrProtocol, "%s has no version", f.manifestKey)
	}

	rel := &core.Release{Version: core.Version(m.Version)}
	for _, a := range m.Assets {
		if a.Key == "" {
			continue
		}
		ref, err := f.store.PresignedURL(ctx, a.Key, f.expiry)
		if err != nil {
			return nil, core.NewError("presign asset", core.ErrProtocol, err)
		}

		digest := ""
		if a.SHA256 != "" {
			digest = "sha256:" + a.SHA256
		}
		rel.Assets = append(rel.Assets, core.Asset{
			ID:        a.Key,
			Name:      a.Name,
			Reference: ref,
			Size:      a.Size,
			Digest:    digest,
		})
	}

	return rel, nil
}
