package core

// Asset is one downloadable file of a published release.
type Asset struct {
	ID   string
	Name string
	// Reference is what the fetcher opens to download the asset.
	Reference string
	// Size is the advertised byte count, 0 when unknown.
	Size int64
	// Digest is "sha256:<hex>" when the feed publishes one.
	Digest string
}

// Release is the latest release as published by a feed.
type Release struct {
	Version Version
	Assets  []Asset
}

// ReleaseInfo describes an available update. It is produced by a single
// resolve and discarded once the cycle that used it completes.
type ReleaseInfo struct {
	Version Version
	Asset   Asset
	// SizeHint is the expected artifact size, 0 when unknown.
	SizeHint int64
}
