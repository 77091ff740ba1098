package mqtt

import (
	"context"
	"errors"
	"testing"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"ota/v1/command/dev-1", "ota/v1/command/dev-1", true},
		{"ota/v1/command/+", "ota/v1/command/dev-1", true},
		{"ota/v1/command/+", "ota/v1/command/dev-1/extra", false},
		{"ota/v1/#", "ota/v1/ota/status/dev-1", true},
		{"ota/v1/+/status", "ota/v1/ota/status", true},
		{"ota/v1/+/status", "ota/v1/ota/progress", false},
		{"ota/v1/+", "ota/v1", false},
		{"ota/v2/command/+", "ota/v1/command/dev-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
				t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("nil config must be rejected")
	}
	if _, err := NewClient(&ClientConfig{BrokerURL: "http://broker:1883"}); err == nil {
		t.Error("http scheme must be rejected")
	}

	cfg := &ClientConfig{BrokerURL: "tcp://broker:1883"}
	if _, err := NewClient(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KeepAlive != 60 || cfg.ConnectTimeout == 0 || cfg.ReconnectDelay == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestConnectionListeners(t *testing.T) {
	c := &pahoClient{cfg: &ClientConfig{}, subs: map[string]subscription{}}
	var states []bool
	c.OnConnectionChange(func(up bool) { states = append(states, up) })

	c.setConnected(true)
	c.setConnected(true)
	c.setConnected(false)
	c.onConnectError(errors.New("refused"))

	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("unexpected state changes %v", states)
	}
	if c.IsConnected() {
		t.Error("client must report disconnected")
	}
}

func TestNotStarted(t *testing.T) {
	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://broker:1883"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Publish(context.Background(), "t", 1, false, nil); !errors.Is(err, errNotStarted) {
		t.Errorf("Publish before Start: %v", err)
	}
	if err := c.AwaitConnection(context.Background()); !errors.Is(err, errNotStarted) {
		t.Errorf("AwaitConnection before Start: %v", err)
	}
}
