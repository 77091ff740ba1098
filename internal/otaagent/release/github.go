package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/internal/otaagent/fetch"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

// maxReleaseBody caps the release descriptor read from the API.
const maxReleaseBody = 1 << 20

// GitHubFeed reads the latest release of a GitHub repository.
type GitHubFeed struct {
	client *http.Client
	apiURL string
	owner  string
	repo   string
	token  string
}

var _ Feed = (*GitHubFeed)(nil)

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Draft   bool          `json:"draft"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	URL    string `json:"url"`
	Digest string `json:"digest"`
}

// NewGitHubFeed creates a feed for opts.Owner/opts.Repo.
func NewGitHubFeed(opts *options.ReleaseOptions, fetchOpts *options.FetchOptions) *GitHubFeed {
	return &GitHubFeed{
		client: &http.Client{
			Transport: fetch.NewTransport(fetchOpts),
			Timeout:   2 * fetchOpts.HeaderTimeout,
		},
		apiURL: strings.TrimRight(opts.APIURL, "/"),
		owner:  opts.Owner,
		repo:   opts.Repo,
		token:  opts.Token,
	}
}

func (g *GitHubFeed) Latest(ctx context.Context) (*core.Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", g.apiURL, g.owner, g.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.NewError("latest release", core.ErrProtocol, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", fetch.UserAgent())
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, core.NewError("latest release", core.ErrNetwork, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("Error closing response body", "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf("latest release", core.ErrProtocol, "unexpected HTTP status: %s", resp.Status)
	}

	var payload githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReleaseBody)).Decode(&payload); err != nil {
		return nil, core.NewError("latest release", core.ErrProtocol, fmt.Errorf("decode release: %w", err))
	}
	if payload.TagName == "" {
		return nil, core.Errorf("latest release", core.ErrProtocol, "release has no tag")
	}
	// Mirrors of the API may serve unpublished releases.
	if payload.Draft {
		return nil, core.Errorf("latest release", core.ErrProtocol, "release %s is a draft", payload.TagName)
	}

	rel := &core.Release{Version: core.Version(payload.TagName)}
	for _, a := range payload.Assets {
		rel.Assets = append(rel.Assets, core.Asset{
			ID:        strconv.FormatInt(a.ID, 10),
			Name:      a.Name,
			Reference: g.assetReference(a),
			Size:      a.Size,
			Digest:    a.Digest,
		})
	}

	return rel, nil
}

// assetReference is the API endpoint of the asset. Requested as
// application/octet-stream it redirects to the storage that holds the bytes.
func (g *GitHubFeed) assetReference(a githubAsset) string {
	if a.URL != "" {
		return a.URL
	}
	return fmt.Sprintf("%s/repos/%s/%s/releases/assets/%d", g.apiURL, g.owner, g.repo, a.ID)
}
