package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/pkg/options"
)

func validOptions() *AgentOptions {
	o := NewAgentOptions()
	o.ReleaseOptions.Owner = "autopeer-io"
	o.ReleaseOptions.Repo = "firmware"
	return o
}

func TestAgentOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *AgentOptions)
		wantErr string
	}{
		{
			name:   "defaults with a repository",
			mutate: func(o *AgentOptions) {},
		},
		{
			name:    "github feed needs a repository",
			mutate:  func(o *AgentOptions) { o.ReleaseOptions.Repo = "" },
			wantErr: "--release.owner and --release.repo",
		},
		{
			name:   "s3 settings ignored for the github feed",
			mutate: func(o *AgentOptions) { o.S3Options.Endpoint = "" },
		},
		{
			name: "s3 feed validates s3 settings",
			mutate: func(o *AgentOptions) {
				o.ReleaseOptions.Feed = options.FeedS3
				o.S3Options.BucketName = ""
			},
			wantErr: "--s3.bucket-name",
		},
		{
			name:    "interval too short",
			mutate:  func(o *AgentOptions) { o.UpdateOptions.Interval = 0 },
			wantErr: "--update.interval",
		},
		{
			name:    "bad log format",
			mutate:  func(o *AgentOptions) { o.Log.Format = "xml" },
			wantErr: "xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAgentOptionsFlags(t *testing.T) {
	fss := NewAgentOptions().Flags()
	for _, name := range []string{"release", "update", "fetch", "slots", "s3", "mqtt", "http", "grpc", "indicator", "log"} {
		assert.Contains(t, fss.Order, name)
	}
	assert.NotNil(t, fss.FlagSet("update").Lookup("update.interval"))
}

func TestAgentOptionsConfig(t *testing.T) {
	o := validOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "cpeer-ota-agent", o.Log.Name)

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.ReleaseOptions, cfg.ReleaseOptions)
	assert.Same(t, o.SlotOptions, cfg.SlotOptions)
	assert.Same(t, o.S3Options, cfg.S3Options)
}
