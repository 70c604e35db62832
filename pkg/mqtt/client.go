package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hearthd/hearth-platform/pkg/config"
)

// client implements Client on top of Paho. Sessions are clean, so the
// broker forgets subscriptions across reconnects; the client tracks them
// and replays them from the OnConnect hook. The agent subscribes once at
// startup and must keep receiving sensor data after any broker restart.
type client struct {
	paho   pahomqtt.Client
	broker string
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// NewClient creates the agent's MQTT client. The connection retries and
// reconnects on its own; Connect only gates startup on the first attempt.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	c := &client{
		broker: cfg.MQTTAddress(),
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.broker)

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(p pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", "broker", c.broker)
		c.restoreSubscriptions()
	}
	opts.OnConnectionLost = func(p pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}

	c.paho = pahomqtt.NewClient(opts)
	return c
}

// Connect blocks until the first connection attempt resolves or the
// context expires
func (c *client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to MQTT broker", "broker", c.broker)

	token := c.paho.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("mqtt connect %s: %w", c.broker, token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect %s: %w", c.broker, ctx.Err())
	}
}

// Disconnect flushes in-flight messages and closes the connection
func (c *client) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker")
	c.paho.Disconnect(250)
}

// Subscribe registers a handler for a topic filter and records it for
// replay after a reconnect
func (c *client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := c.subscribe(topic, qos, handler); err != nil {
		return err
	}

	c.logger.Info("Subscribed to MQTT topic", "topic", topic, "qos", qos)
	return nil
}

func (c *client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.paho.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(&pahoMessage{msg: msg})
	})
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (c *client) restoreSubscriptions() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		if err := c.subscribe(topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("Failed to restore MQTT subscription", "topic", topic, "error", err)
		}
	}
}

// Publish sends a payload to a topic and waits for the broker handoff
func (c *client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.paho.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, token.Error())
	}

	c.logger.Debug("Published MQTT message", "topic", topic, "size", len(payload))
	return nil
}

// IsConnected reports whether the broker connection is up
func (c *client) IsConnected() bool {
	return c.paho.IsConnected()
}

// pahoMessage adapts a Paho message to the Message interface
type pahoMessage struct {
	msg pahomqtt.Message
}

func (m *pahoMessage) Topic() string   { return m.msg.Topic() }
func (m *pahoMessage) Payload() []byte { return m.msg.Payload() }
