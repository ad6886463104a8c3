// Package mqtt uplinks ground-station reports to an MQTT broker.
//
// Every frame a station hears is wrapped in a report envelope and published
// to "{prefix}/{station}/report". Mission control sends station commands on
// "{prefix}/{station}/command"; the gateway hands their payloads to the
// OnCommand callback for relaying over the radio link.
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix for reports.
	DefaultTopicPrefix = "stratolink"

	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("not connected to broker")

// Config holds the configuration for a report gateway.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the broker connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is
	// generated.
	ClientID string
	// TopicPrefix is the topic prefix (default: "stratolink").
	TopicPrefix string
	// StationID names this ground station in the topic tree. Required.
	StationID string
	// OnCommand is called with the payload of each command received from
	// mission control. May be nil.
	OnCommand func(payload []byte)
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Gateway publishes report envelopes and receives commands over MQTT.
type Gateway struct {
	cfg    Config
	client paho.Client
	log    *slog.Logger

	mu        sync.RWMutex
	connected bool
}

// New creates a gateway with the given configuration.
func New(cfg Config) *Gateway {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Gateway{
		cfg: cfg,
		log: cfg.Logger.WithGroup("mqtt"),
	}
}

// Start connects to the broker and subscribes to the command topic.
func (g *Gateway) Start() error {
	if g.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if g.cfg.StationID == "" {
		return errors.New("station ID is required")
	}

	clientID := g.cfg.ClientID
	if clientID == "" {
		clientID = "strato-" + uuid.New().String()
	}

	opts := paho.NewClientOptions().
		AddBroker(g.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(g.onConnected).
		SetConnectionLostHandler(g.onConnectionLost).
		SetReconnectingHandler(g.onReconnecting)

	if g.cfg.Username != "" {
		opts.SetUsername(g.cfg.Username)
	}
	if g.cfg.Password != "" {
		opts.SetPassword(g.cfg.Password)
	}
	if g.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	g.client = paho.NewClient(opts)

	token := g.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	return nil
}

// Stop gracefully disconnects from the broker.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		g.client.Disconnect(1000)
		g.connected = false
	}
	return nil
}

// IsConnected returns true if the gateway is connected to the broker.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected && g.client != nil && g.client.IsConnected()
}

// PublishReport publishes one report envelope to the station's report topic.
// Envelopes are published at QoS 1: a report that reached the gateway should
// reach the broker.
func (g *Gateway) PublishReport(envelope []byte) error {
	if !g.IsConnected() {
		return ErrNotConnected
	}

	token := g.client.Publish(g.reportTopic(), 1, false, envelope)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("timeout publishing report")
	}
	return token.Error()
}

func (g *Gateway) reportTopic() string {
	return g.cfg.TopicPrefix + "/" + g.cfg.StationID + "/report"
}

func (g *Gateway) commandTopic() string {
	return g.cfg.TopicPrefix + "/" + g.cfg.StationID + "/command"
}

func (g *Gateway) subscribe() {
	topic := g.commandTopic()
	g.client.Subscribe(topic, 1, g.handleCommand)
	g.log.Debug("subscribed to command topic", "topic", topic)
}

func (g *Gateway) handleCommand(_ paho.Client, message paho.Message) {
	if g.cfg.OnCommand == nil {
		return
	}

	// paho reuses the message buffer after the handler returns.
	payload := append([]byte(nil), message.Payload()...)
	g.log.Debug("command received", "bytes", len(payload))
	g.cfg.OnCommand(payload)
}

func (g *Gateway) onConnected(_ paho.Client) {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()

	g.subscribe()
	g.log.Info("connected to MQTT broker", "broker", g.cfg.Broker)
}

func (g *Gateway) onConnectionLost(_ paho.Client, err error) {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()

	g.log.Error("MQTT connection lost", "error", err)
}

func (g *Gateway) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	g.log.Info("reconnecting to MQTT broker")
}
