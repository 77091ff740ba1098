package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/ota-agent/internal/otaagent"
	"github.com/autopeer-io/ota-agent/pkg/app"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

type AgentOptions struct {
	ReleaseOptions   *options.ReleaseOptions   `json:"release" mapstructure:"release"`
	UpdateOptions    *options.UpdateOptions    `json:"update" mapstructure:"update"`
	FetchOptions     *options.FetchOptions     `json:"fetch" mapstructure:"fetch"`
	SlotOptions      *options.SlotOptions      `json:"slots" mapstructure:"slots"`
	S3Options        *options.S3Options        `json:"s3" mapstructure:"s3"`
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	GrpcOptions      *options.GrpcOptions      `json:"grpc" mapstructure:"grpc"`
	IndicatorOptions *options.IndicatorOptions `json:"indicator" mapstructure:"indicator"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		ReleaseOptions:   options.NewReleaseOptions(),
		UpdateOptions:    options.NewUpdateOptions(),
		FetchOptions:     options.NewFetchOptions(),
		SlotOptions:      options.NewSlotOptions(),
		S3Options:        options.NewS3Options(),
		MqttOptions:      options.NewMqttOptions(),
		HttpOptions:      options.NewHttpOptions(),
		GrpcOptions:      options.NewGrpcOptions(),
		IndicatorOptions: options.NewIndicatorOptions(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.ReleaseOptions.AddFlags(fss.FlagSet("release"))
	o.UpdateOptions.AddFlags(fss.FlagSet("update"))
	o.FetchOptions.AddFlags(fss.FlagSet("fetch"))
	o.SlotOptions.AddFlags(fss.FlagSet("slots"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.IndicatorOptions.AddFlags(fss.FlagSet("indicator"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = "cpeer-ota-agent"
	}
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.ReleaseOptions.Validate()...)
	errs = append(errs, o.UpdateOptions.Validate()...)
	errs = append(errs, o.FetchOptions.Validate()...)
	errs = append(errs, o.SlotOptions.Validate()...)
	if o.ReleaseOptions.Feed == options.FeedS3 {
		errs = append(errs, o.S3Options.Validate()...)
	}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.IndicatorOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*otaagent.Config, error) {
	return &otaagent.Config{
		ReleaseOptions:   o.ReleaseOptions,
		UpdateOptions:    o.UpdateOptions,
		FetchOptions:     o.FetchOptions,
		SlotOptions:      o.SlotOptions,
		S3Options:        o.S3Options,
		MqttOptions:      o.MqttOptions,
		HttpOptions:      o.HttpOptions,
		GrpcOptions:      o.GrpcOptions,
		IndicatorOptions: o.IndicatorOptions,
	}, nil
}
