package hal

import (
	"os"
	"strings"
)

// EnvDeviceID overrides the detected device identity.
const EnvDeviceID = "CPEER_DEVICE_ID"

var deviceIDFiles = []string{
	"/etc/cpeer/device-id",
	"/etc/machine-id",
}

// DeviceID identifies this device: the environment override first, then
// the provisioned id files, then the hostname.
func DeviceID() string {
	return deviceID(os.Getenv, deviceIDFiles, os.Hostname)
}

func deviceID(getenv func(string) string, files []string, hostname func() (string, error)) string {
	if id := strings.TrimSpace(getenv(EnvDeviceID)); id != "" {
		return id
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	if h, err := hostname(); err == nil && h != "" {
		return h
	}
	return "unknown-device"
}
