package app

import (
	"sync/atomic"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/internal/otaagent"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

func TestReloadConfigLogLevel(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		_ = log.SetLevel("info")
	})
	require.NoError(t, log.SetLevel("info"))

	var running atomic.Pointer[otaagent.Agent]
	reload := reloadConfig(&running)

	viper.Set("log.level", "debug")
	reload(fsnotify.Event{Name: "agent.yaml", Op: fsnotify.Chmod})
	assert.Equal(t, "info", log.Level())

	reload(fsnotify.Event{Name: "agent.yaml", Op: fsnotify.Write})
	assert.Equal(t, "debug", log.Level())

	viper.Set("log.level", "chatty")
	reload(fsnotify.Event{Name: "agent.yaml", Op: fsnotify.Write})
	assert.Equal(t, "debug", log.Level())
}
