package hal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/pkg/options"
)

func TestNewRestarter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := NewRestarter(options.RestartExit, cancel)
	require.NoError(t, err)
	require.NoError(t, r.Restart(context.Background()))
	assert.Error(t, ctx.Err())

	r, err = NewRestarter(options.RestartSystem, cancel)
	require.NoError(t, err)
	assert.IsType(t, &SystemRestarter{}, r)

	_, err = NewRestarter("halt", cancel)
	assert.Error(t, err)
}
