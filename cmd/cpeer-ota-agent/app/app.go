package app

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"
	"k8s.io/klog/v2"

	"github.com/autopeer-io/ota-agent/cmd/cpeer-ota-agent/app/options"
	"github.com/autopeer-io/ota-agent/internal/otaagent"
	"github.com/autopeer-io/ota-agent/pkg/app"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

const (
	commandName = "cpeer-ota-agent"
	commandDesc = `The Autopeer OTA Agent runs on the device, polls a release feed for
new firmware, streams it into the inactive boot slot and restarts the
device into it once the image is verified.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	var running atomic.Pointer[otaagent.Agent]

	application := app.NewApp(
		commandName,
		"Launch an Autopeer OTA agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithSubCommands(newSlotsCommand(), newVersionCommand()),
		app.WithConfigWatch(reloadConfig(&running)),
		app.WithRunFunc(run(opts, &running)),
	)
	return application
}

func run(opts *options.AgentOptions, running *atomic.Pointer[otaagent.Agent]) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer func() { _ = log.Sync() }()
		klog.SetLogger(log.Logr().WithName("klog"))

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		running.Store(agent)

		return agent.Run(ctx)
	}
}

// reloadConfig applies a changed log.level and update.interval from the
// config file to the running agent. Other settings take effect on the next
// start.
func reloadConfig(running *atomic.Pointer[otaagent.Agent]) app.ConfigChangeFunc {
	return func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		if lvl := viper.GetString("log.level"); lvl != "" && lvl != log.Level() {
			if err := log.SetLevel(lvl); err != nil {
				log.Warn("Ignoring invalid log level from config", "file", e.Name, "error", err)
			} else {
				log.Info("Config file changed, applying log level", "file", e.Name, "level", lvl)
			}
		}

		agent := running.Load()
		if agent == nil {
			return
		}

		interval := viper.GetDuration("update.interval")
		if interval < time.Second {
			log.Warn("Ignoring invalid update interval from config", "file", e.Name, "interval", interval)
			return
		}
		log.Info("Config file changed, applying update interval", "file", e.Name, "interval", interval)
		agent.SetInterval(interval)
	}
}
