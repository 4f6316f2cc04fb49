package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/xtxerr/heatwatch/config"
	"github.com/xtxerr/heatwatch/internal/loader"
)

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes alerts as JSON to an MQTT topic.
type MQTTSink struct {
	client publisher
	topic  string
	qos    byte
}

// NewMQTTSink connects to the broker. The client reconnects on its own
// after the first successful connect.
func NewMQTTSink(cfg loader.MQTTConfig, timeout time.Duration) (*MQTTSink, error) {
	if timeout <= 0 {
		timeout = config.DefaultAlertTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect mqtt %s: timeout after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.Broker, err)
	}

	log.Info("mqtt alert sink connected", "broker", cfg.Broker, "topic", cfg.Topic)

	return &MQTTSink{client: c, topic: cfg.Topic, qos: cfg.QoS}, nil
}

// Notify implements Sink.
func (s *MQTTSink) Notify(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("encode alert", "error", err)
		return
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			log.Warn("mqtt alert publish failed", "topic", s.topic, "error", err)
		}
	case <-ctx.Done():
		log.Warn("mqtt alert publish timed out", "topic", s.topic, "error", ctx.Err())
	}
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(config.DefaultMQTTDisconnectMs)
	return nil
}
