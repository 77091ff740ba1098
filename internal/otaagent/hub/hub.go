package hub

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/internal/pkg/metrics"
	"github.com/autopeer-io/ota-agent/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/ota-agent/pkg/mqtt/topic"
)

// CommandCheck asks the agent to check for an update now.
const CommandCheck = "check"

const publishTimeout = 5 * time.Second

// Hub connects the agent to the MQTT broker: it publishes presence and
// update events and turns inbound commands into checks.
type Hub struct {
	did string

	mc      mqtt.Client
	topics  *mqtttopic.Builder
	trigger func()

	// announced is set once Start published the first presence.
	announced atomic.Bool
}

var _ core.Sink = (*Hub)(nil)

func New(did string, client mqtt.Client, topicbuilder *mqtttopic.Builder, trigger func()) *Hub {
	h := &Hub{
		did:     did,
		mc:      client,
		topics:  topicbuilder,
		trigger: trigger,
	}
	client.OnConnectionChange(h.onConnectionChange)
	return h
}

// ConfigureWill makes the broker announce the device offline when the
// connection drops without a clean disconnect.
func ConfigureWill(cfg *mqtt.ClientConfig, topicbuilder *mqtttopic.Builder, did string) error {
	payload, err := presence(false, "connection lost")
	if err != nil {
		return err
	}
	cfg.WillTopic = topicbuilder.Build(paths.Online, did)
	cfg.WillPayload = payload
	cfg.WillQoS = 1
	cfg.WillRetain = true
	return nil
}

func (h *Hub) Start(ctx context.Context) error {
	if err := h.mc.Start(ctx); err != nil {
		return err
	}
	if err := h.mc.AwaitConnection(ctx); err != nil {
		return err
	}
	metrics.HubConnectivityStatus.Set(1)

	command := h.topics.Build(paths.Command, h.did)
	if err := h.mc.Subscribe(ctx, command, 1, h.handleCommand); err != nil {
		return fmt.Errorf("subscribe %s: %w", command, err)
	}

	if err := h.publishPresence(ctx, true, "started"); err != nil {
		return err
	}
	h.announced.Store(true)

	log.Info("Connected to MQTT hub", "device", h.did, "commands", command)
	return nil
}

func (h *Hub) Stop() {
	log.Info("Disconnecting MQTT client...")
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if h.mc.IsConnected() {
		if err := h.publishPresence(ctx, false, "shutdown"); err != nil {
			log.Warn("Failed to publish offline presence", "error", err)
		}
	}
	h.announced.Store(false)
	h.mc.Disconnect(ctx)
	metrics.HubConnectivityStatus.Set(0)
}

func (h *Hub) IsConnected() bool {
	return h.mc.IsConnected()
}

// Report publishes the outcome of a cycle, retained so late subscribers see
// the last result.
func (h *Hub) Report(o core.Outcome) {
	fields := map[string]any{
		"outcome": o.Kind.String(),
		"cycle":   o.Cycle,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	}
	if o.Release != nil {
		fields["version"] = string(o.Release.Version)
	}
	if o.Path != "" {
		fields["path"] = string(o.Path)
	}
	if o.Reason != nil {
		fields["reason"] = o.Reason.Error()
	}

	h.publish(paths.OTAStatus, true, fields)
}

func (h *Hub) Progress(p core.Progress) {
	h.publish(paths.OTAProgress, false, map[string]any{
		"cycle":   p.Cycle,
		"state":   string(p.State),
		"path":    string(p.Path),
		"version": string(p.Version),
		"bytes":   p.Written,
		"total":   p.Total,
	})
}

func (h *Hub) publish(segment string, retain bool, fields map[string]any) {
	if !h.mc.IsConnected() {
		log.Debug("MQTT hub offline, skipping event", "segment", segment)
		return
	}

	payload, err := marshal(fields)
	if err != nil {
		log.Error(err, "Failed to encode hub event", "segment", segment)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	topic := h.topics.Build(segment, h.did)
	if err := h.mc.Publish(ctx, topic, 1, retain, payload); err != nil {
		log.Warn("Failed to publish hub event", "topic", topic, "error", err)
	}
}

func (h *Hub) publishPresence(ctx context.Context, online bool, reason string) error {
	payload, err := presence(online, reason)
	if err != nil {
		return err
	}
	return h.mc.Publish(ctx, h.topics.Build(paths.Online, h.did), 1, true, payload)
}

func (h *Hub) handleCommand(ctx context.Context, topic string, payload []byte) {
	var msg structpb.Struct
	if err := protojson.Unmarshal(payload, &msg); err != nil {
		log.Warn("Discarding malformed command", "topic", topic, "error", err)
		return
	}

	cmd := msg.GetFields()["command"].GetStringValue()
	switch cmd {
	case CommandCheck:
		log.Info("Remote check requested", "topic", topic)
		h.trigger()
	default:
		log.Warn("Unknown command", "topic", topic, "command", cmd)
	}
}

// onConnectionChange tracks connectivity. The broker published the will
// when the connection dropped, so presence is restored on every reconnect.
func (h *Hub) onConnectionChange(connected bool) {
	if !connected {
		metrics.HubConnectivityStatus.Set(0)
		log.Warn("MQTT hub connection lost", "device", h.did)
		return
	}

	metrics.HubConnectivityStatus.Set(1)
	if !h.announced.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.publishPresence(ctx, true, "reconnected"); err != nil {
		log.Warn("Failed to restore presence", "error", err)
	}
}

func presence(online bool, reason string) ([]byte, error) {
	return marshal(map[string]any{"online": online, "reason": reason})
}

func marshal(fields map[string]any) ([]byte, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(msg)
}
