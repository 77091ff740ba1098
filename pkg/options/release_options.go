package options

import (
	"fmt"
	"path"
	"time"

	"github.com/spf13/pflag"
)

const (
	FeedGitHub = "github"
	FeedS3     = "s3"

	PolicyDiffers = "differs"
	PolicyNewer   = "newer"
)

var _ IOptions = (*ReleaseOptions)(nil)

// ReleaseOptions describes where releases are published and which asset is the firmware image.
type ReleaseOptions struct {
	// Feed selects the release source: "github" or "s3".
	Feed string `json:"feed" mapstructure:"feed"`

	// APIURL is the GitHub REST API base URL.
	APIURL string `json:"api-url" mapstructure:"api-url"`
	Owner  string `json:"owner" mapstructure:"owner"`
	Repo   string `json:"repo" mapstructure:"repo"`

	// Token is an optional bearer token for private repositories.
	Token string `json:"token" mapstructure:"token"`

	// ManifestKey is the object key of the latest-release manifest in the S3 bucket.
	ManifestKey string `json:"manifest-key" mapstructure:"manifest-key"`

	// PresignExpiry is the lifetime of presigned artifact URLs handed to the fetcher.
	PresignExpiry time.Duration `json:"presign-expiry" mapstructure:"presign-expiry"`

	// AssetPattern is the path.Match pattern an asset name must satisfy to be installed.
	AssetPattern string `json:"asset-pattern" mapstructure:"asset-pattern"`

	// CurrentVersion overrides the detected running version.
	CurrentVersion string `json:"current-version" mapstructure:"current-version"`

	// Policy decides when a candidate is an update: "differs" or "newer".
	Policy string `json:"policy" mapstructure:"policy"`
}

// NewReleaseOptions creates ReleaseOptions with the GitHub feed defaults.
func NewReleaseOptions() *ReleaseOptions {
	return &ReleaseOptions{
		Feed:          FeedGitHub,
		APIURL:        "https://api.github.com",
		ManifestKey:   "releases/latest.json",
		PresignExpiry: 15 * time.Minute,
		AssetPattern:  "firmware.bin",
		Policy:        PolicyDiffers,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *ReleaseOptions) Validate() []error {
	errors := []error{}

	switch o.Feed {
	case FeedGitHub:
		if o.Owner == "" || o.Repo == "" {
			errors = append(errors, fmt.Errorf("--release.owner and --release.repo are required for the github feed"))
		}
		if o.APIURL == "" {
			errors = append(errors, fmt.Errorf("--release.api-url must not be empty"))
		}
	case FeedS3:
		if o.ManifestKey == "" {
			errors = append(errors, fmt.Errorf("--release.manifest-key must not be empty"))
		}
		if o.PresignExpiry <= 0 {
			errors = append(errors, fmt.Errorf("--release.presign-expiry must be positive"))
		}
	default:
		errors = append(errors, fmt.Errorf("unknown release feed %q", o.Feed))
	}

	if _, err := path.Match(o.AssetPattern, ""); err != nil || o.AssetPattern == "" {
		errors = append(errors, fmt.Errorf("--release.asset-pattern %q is not a valid pattern", o.AssetPattern))
	}

	switch o.Policy {
	case PolicyDiffers, PolicyNewer:
	default:
		errors = append(errors, fmt.Errorf("unknown version policy %q", o.Policy))
	}

	return errors
}

// AddFlags adds flags for ReleaseOptions to the specified FlagSet.
func (o *ReleaseOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Feed, "release.feed", o.Feed, "Release feed to poll ('github' or 's3').")
	fs.StringVar(&o.APIURL, "release.api-url", o.APIURL, "GitHub REST API base URL.")
	fs.StringVar(&o.Owner, "release.owner", o.Owner, "Owner of the GitHub repository publishing firmware releases.")
	fs.StringVar(&o.Repo, "release.repo", o.Repo, "Name of the GitHub repository publishing firmware releases.")
	fs.StringVar(&o.Token, "release.token", o.Token, "Bearer token for private repositories.")
	fs.StringVar(&o.ManifestKey, "release.manifest-key", o.ManifestKey, "Object key of the latest-release manifest (s3 feed).")
	fs.DurationVar(&o.PresignExpiry, "release.presign-expiry", o.PresignExpiry, "Lifetime of presigned artifact URLs (s3 feed).")
	fs.StringVar(&o.AssetPattern, "release.asset-pattern", o.AssetPattern, "Pattern the firmware asset name must match.")
	fs.StringVar(&o.CurrentVersion, "release.current-version", o.CurrentVersion, "Override the detected running firmware version.")
	fs.StringVar(&o.Policy, "release.policy", o.Policy, "When a candidate counts as an update ('differs' or 'newer').")
}
