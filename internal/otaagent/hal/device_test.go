package hal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceID(t *testing.T) {
	dir := t.TempDir()
	idFile := filepath.Join(dir, "device-id")
	require.NoError(t, os.WriteFile(idFile, []byte("esp32-7f3a\n"), 0o644))

	noEnv := func(string) string { return "" }
	host := func() (string, error) { return "rpi-garage", nil }

	tests := []struct {
		name     string
		getenv   func(string) string
		files    []string
		hostname func() (string, error)
		want     string
	}{
		{
			name:     "environment override",
			getenv:   func(string) string { return " dev-env " },
			files:    []string{idFile},
			hostname: host,
			want:     "dev-env",
		},
		{
			name:     "provisioned file",
			getenv:   noEnv,
			files:    []string{filepath.Join(dir, "missing"), idFile},
			hostname: host,
			want:     "esp32-7f3a",
		},
		{
			name:     "hostname",
			getenv:   noEnv,
			hostname: host,
			want:     "rpi-garage",
		},
		{
			name:     "nothing available",
			getenv:   noEnv,
			hostname: func() (string, error) { return "", errors.New("no hostname") },
			want:     "unknown-device",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deviceID(tc.getenv, tc.files, tc.hostname))
		})
	}
}
