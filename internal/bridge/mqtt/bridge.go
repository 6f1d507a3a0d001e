// Package mqtt republishes cistron MESSAGE notifications to an MQTT
// broker. It is a one-way bridge: the core bus never depends on it,
// the demo binary wires components' SendMessage calls through an
// ordinary global subscription that hands envelopes to Bridge.Publish.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Config configures the MQTT bridge's connection to a broker.
type Config struct {
	Broker    string
	Username  string
	Password  string
	ClientID  string
	BaseTopic string
}

// Bridge manages the MQTT connection and republishes bus messages as
// non-retained QoS 0 MQTT publishes under Config.BaseTopic/<name>.
type Bridge struct {
	cfg    Config
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Bridge but does not connect. Call Start to begin the
// connection. A nil logger is replaced with slog.Default.
func New(cfg Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{cfg: cfg, logger: logger}
}

// Start connects to the configured broker, retrying in the background
// on failure, per autopaho's usual behavior.
func (b *Bridge) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker url: %w", err)
	}

	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = "cistron-demo"
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: b.cfg.Username,
		ConnectPassword: []byte(b.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Info("mqtt bridge connected", "broker", b.cfg.Broker)
		},
		OnConnectError: func(err error) {
			b.logger.Warn("mqtt bridge connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{ClientID: clientID},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt bridge connect: %w", err)
	}
	b.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.logger.Warn("mqtt bridge initial connection timed out, retrying in background", "error", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.cm == nil {
		return nil
	}
	return b.cm.Disconnect(ctx)
}

// Publish republishes a bus message under cfg.BaseTopic/name.
func (b *Bridge) Publish(ctx context.Context, name string, payload []byte) error {
	if b.cm == nil {
		return fmt.Errorf("mqtt bridge not started")
	}
	topic := b.cfg.BaseTopic + "/" + name
	_, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     0,
		Retain:  false,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("mqtt bridge publish %s: %w", topic, err)
	}
	return nil
}
