// Package mqtt wraps the broker connection: subscriptions, the retained
// online/offline liveness signal, and the command topic.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mtskcm/iot-service-notifier/internal/config"
	"github.com/mtskcm/iot-service-notifier/internal/logger"
)

const (
	qosAtLeastOnce    = 1
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds, paho API takes a plain uint
)

type statusSignal struct {
	Status string `json:"status"`
}

type command struct {
	Cmd string `json:"cmd"`
}

// MessageFunc receives one inbound sensor message. It runs on the paho
// dispatch path and must return quickly; heavy work belongs on the worker
// queue.
type MessageFunc func(topic string, payload []byte)

// Client is the broker connection for the notifier service.
type Client struct {
	cfg        *config.Config
	client     paho.Client
	onMessage  MessageFunc
	onShutdown func()
}

// NewClient creates a Client. onShutdown is invoked when the command topic
// receives a shutdown directive.
func NewClient(cfg *config.Config, onMessage MessageFunc, onShutdown func()) *Client {
	return &Client{cfg: cfg, onMessage: onMessage, onShutdown: onShutdown}
}

// Connect establishes the broker session. The last-will publishes a retained
// offline status so late subscribers observe the crash state.
func (c *Client) Connect() error {
	offline, _ := json.Marshal(statusSignal{Status: "offline"})

	opts := paho.NewClientOptions().
		AddBroker(c.cfg.BrokerAddr()).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(false).
		SetBinaryWill(c.cfg.StatusTopic, offline, qosAtLeastOnce, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	c.client = paho.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to %s: timeout", c.cfg.BrokerAddr())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", c.cfg.BrokerAddr(), err)
	}
	return nil
}

// onConnect runs on every (re)connect: subscriptions do not survive a
// session drop, so they are restored here, and the retained online status is
// refreshed.
func (c *Client) onConnect(client paho.Client) {
	log := logger.WithComponent("mqtt")
	log.Debug().Msg("connected to broker")

	topic := c.cfg.SensorTopic()
	if token := client.Subscribe(topic, qosAtLeastOnce, c.handleSensorMessage); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", topic).Msg("sensor subscribe failed")
	} else {
		log.Info().Str("topic", topic).Msg("subscribed to sensor topics")
	}

	if c.cfg.CommandTopic != "" {
		if token := client.Subscribe(c.cfg.CommandTopic, qosAtLeastOnce, c.handleCommand); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", c.cfg.CommandTopic).Msg("command subscribe failed")
		}
	}

	c.publishStatus("online")
	log.Info().Str("topic", c.cfg.StatusTopic).Msg("published online status")
}

func (c *Client) onConnectionLost(client paho.Client, err error) {
	log := logger.WithComponent("mqtt")
	log.Warn().Err(err).Msg("connection lost, reconnecting")
}

func (c *Client) handleSensorMessage(client paho.Client, msg paho.Message) {
	c.onMessage(msg.Topic(), msg.Payload())
}

// handleCommand decodes control messages. Only the shutdown directive is
// recognized; anything else is logged and ignored.
func (c *Client) handleCommand(client paho.Client, msg paho.Message) {
	log := logger.WithComponent("mqtt")

	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		log.Warn().Err(err).Msg("unparseable command message")
		return
	}

	if cmd != "shutdown" {
		log.Info().Str("cmd", cmd).Msg("ignoring unknown command")
		return
	}

	log.Info().Msg("shutdown command received")
	c.onShutdown()
}

// ParseCommand extracts the cmd field from a command payload.
func ParseCommand(payload []byte) (string, error) {
	var cmd command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return "", fmt.Errorf("decode command: %w", err)
	}
	return cmd.Cmd, nil
}

// publishStatus publishes a retained liveness signal.
func (c *Client) publishStatus(status string) {
	payload, _ := json.Marshal(statusSignal{Status: status})
	token := c.client.Publish(c.cfg.StatusTopic, qosAtLeastOnce, true, payload)
	token.WaitTimeout(connectTimeout)
	if err := token.Error(); err != nil {
		log := logger.WithComponent("mqtt")
		log.Error().Err(err).Str("status", status).Msg("status publish failed")
	}
}

// Disconnect publishes the retained offline status and drops the connection.
func (c *Client) Disconnect() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	c.publishStatus("offline")
	log := logger.WithComponent("mqtt")
	log.Info().Msg("published offline status, disconnecting")
	c.client.Disconnect(disconnectQuiesce)
}
