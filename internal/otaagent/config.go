package otaagent

import (
	"fmt"
	"net/url"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/internal/otaagent/fetch"
	"github.com/autopeer-io/ota-agent/internal/otaagent/hal"
	"github.com/autopeer-io/ota-agent/internal/otaagent/hub"
	"github.com/autopeer-io/ota-agent/internal/otaagent/install"
	"github.com/autopeer-io/ota-agent/internal/otaagent/ota"
	"github.com/autopeer-io/ota-agent/internal/otaagent/release"
	"github.com/autopeer-io/ota-agent/internal/otaagent/scheduler"
	"github.com/autopeer-io/ota-agent/internal/otaagent/server"
	"github.com/autopeer-io/ota-agent/internal/otaagent/status"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/ota-agent/pkg/mqtt/topic"
	"github.com/autopeer-io/ota-agent/pkg/options"
	"github.com/autopeer-io/ota-agent/pkg/version"
)

// hubQueueSize bounds the events waiting for the MQTT publisher.
const hubQueueSize = 128

type Config struct {
	ReleaseOptions   *options.ReleaseOptions
	UpdateOptions    *options.UpdateOptions
	FetchOptions     *options.FetchOptions
	SlotOptions      *options.SlotOptions
	S3Options        *options.S3Options
	MqttOptions      *options.MqttOptions
	HttpOptions      *options.HttpOptions
	GrpcOptions      *options.GrpcOptions
	IndicatorOptions *options.IndicatorOptions
}

// NewAgent builds the agent and every component of the update loop.
func (cfg *Config) NewAgent() (*Agent, error) {
	a := &Agent{did: hal.DeviceID()}

	factory := cfg.SlotOptions.FactoryVersion
	if factory == "" {
		factory = version.Get().GitVersion
	}
	slots, err := hal.OpenSlotStore(cfg.SlotOptions.Dir, factory)
	if err != nil {
		return nil, fmt.Errorf("open slot store: %w", err)
	}
	if _, err := slots.Boot(); err != nil {
		return nil, fmt.Errorf("boot slot store: %w", err)
	}
	a.slots = slots

	feed, err := cfg.newFeed(a)
	if err != nil {
		return nil, err
	}

	restarter, err := hal.NewRestarter(cfg.UpdateOptions.RestartMode, a.shutdown)
	if err != nil {
		return nil, err
	}

	a.indicator = status.NewIndicator(cfg.IndicatorOptions.LEDPath)
	sinks := status.Multi{
		status.NewLogSink(log.WithName("status")),
		status.NewMetricsSink(),
		a.indicator,
	}
	if cfg.MqttOptions.Enabled {
		h, err := cfg.newHub(a.did, a.Trigger)
		if err != nil {
			return nil, fmt.Errorf("init mqtt hub: %w", err)
		}
		a.hub = h
		a.hubSink = status.NewNonBlocking(h, hubQueueSize)
		sinks = append(sinks, a.hubSink)
	}

	engine := install.NewEngine(cfg.newFetcher(), slots, sinks, cfg.FetchOptions.ChunkSize)
	resolver := release.NewResolver(feed, cfg.ReleaseOptions.AssetPattern, cfg.ReleaseOptions.Policy)
	a.current = cfg.versionFunc(slots)

	a.scheduler = scheduler.New(
		ota.NewCycle(resolver, engine, a.current),
		sinks,
		restarter,
		cfg.UpdateOptions.Interval,
	)

	if cfg.HttpOptions.Enabled {
		a.http = server.NewHTTPServer(cfg.HttpOptions, server.NewRouter(a))
	}
	if cfg.GrpcOptions.Enabled {
		a.grpc = server.NewGRPCServer(cfg.GrpcOptions)
	}

	return a, nil
}

func (cfg *Config) newFeed(a *Agent) (release.Feed, error) {
	ro := cfg.ReleaseOptions
	switch ro.Feed {
	case options.FeedS3:
		store, err := release.NewMinIOStore(cfg.S3Options, cfg.FetchOptions)
		if err != nil {
			return nil, err
		}
		a.store = store
		return release.NewS3Feed(store, ro.ManifestKey, ro.PresignExpiry), nil
	case options.FeedGitHub:
		return release.NewGitHubFeed(ro, cfg.FetchOptions), nil
	default:
		return nil, fmt.Errorf("unknown release feed %q", ro.Feed)
	}
}

// newFetcher sends the feed token to the feed API host only.
func (cfg *Config) newFetcher() *fetch.Fetcher {
	ro := cfg.ReleaseOptions
	var opts []fetch.Option
	if ro.Feed == options.FeedGitHub && ro.Token != "" {
		if u, err := url.Parse(ro.APIURL); err == nil && u.Host != "" {
			opts = append(opts, fetch.WithBearerToken(u.Host, ro.Token))
		}
	}
	return fetch.New(cfg.FetchOptions, opts...)
}

func (cfg *Config) newHub(did string, trigger func()) (*hub.Hub, error) {
	topicBuilder := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("cpeer-ota-%s", did)
	}
	if err := hub.ConfigureWill(mqttConfig, topicBuilder, did); err != nil {
		return nil, err
	}

	mqttClient, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, err
	}

	return hub.New(did, mqttClient, topicBuilder, trigger), nil
}

// versionFunc prefers the configured override, then the active slot record,
// then the version this binary was built as.
func (cfg *Config) versionFunc(slots *hal.SlotStore) ota.VersionFunc {
	if v := cfg.ReleaseOptions.CurrentVersion; v != "" {
		return func() core.Version { return core.Version(v) }
	}
	return func() core.Version {
		if v := slots.FirmwareVersion(); v != "" {
			return v
		}
		return core.Version(version.Get().GitVersion)
	}
}
