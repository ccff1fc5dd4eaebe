// Package mqtt provides MQTT client functionality
package mqtt

import (
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds MQTT client configuration
type Config struct {
	Broker   string // MQTT broker address (e.g., "tcp://localhost:1883")
	ClientID string // Unique client ID
	Username string // MQTT username (optional)
	Password string // MQTT password (optional)
	Prefix   string // Topic prefix for all messages
	UseTLS   bool   // Enable TLS connection
}

// MessageHandler receives the topic without prefix and the raw payload
type MessageHandler func(topic string, payload []byte)

// Messenger is the part of Client used by the transport and publishers
type Messenger interface {
	PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error
	PublishRaw(topic string, payload interface{}, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
	GetConfig() Config
}

// Client wraps the MQTT client with additional functionality
type Client struct {
	client   mqtt.Client
	config   Config
	mu       sync.RWMutex
	logger   *log.Logger
	isActive bool

	// subscriptions are restored after a reconnect
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// New creates a new MQTT client
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("ambientd-%d", time.Now().Unix())
	}

	c := &Client{
		config: cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Configure TLS if enabled
	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	// Set connection handlers
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connection lost: %v", err)
		}
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connected to broker: %s", cfg.Broker)
		}
		c.resubscribe(client)
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Attempting to reconnect...")
		}
	})

	// Auto-reconnect settings
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	// Keep alive settings
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Clean session
	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.isActive {
		c.mu.Unlock()
		return nil // Already connected
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Connecting to broker: %s", c.config.Broker)
	}

	// The connect handler takes the lock to resubscribe
	c.mu.Unlock()
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.mu.Lock()
	c.isActive = true
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Printf("[MQTT] Successfully connected")
	}

	return nil
}

// Disconnect closes connection to MQTT broker
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return
	}

	c.client.Disconnect(250) // Wait up to 250ms for graceful disconnect
	c.isActive = false

	if c.logger != nil {
		c.logger.Printf("[MQTT] Disconnected from broker")
	}
}

// Publish publishes a message to the specified topic with QoS 0 (default for telemetry)
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishWithQoS(topic, 0, false, payload)
}

// PublishWithQoS publishes a message with explicit QoS and retained settings
func (c *Client) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return fmt.Errorf("MQTT client is not connected")
	}

	// Add prefix to topic
	fullTopic := c.buildTopic(topic)

	// Publish with specified QoS and retained flag
	token := c.client.Publish(fullTopic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Published to %s (QoS %d, retained %v)", fullTopic, qos, retained)
	}

	return nil
}

// PublishRaw publishes a message without adding prefix (for discovery topics)
func (c *Client) PublishRaw(topic string, payload interface{}, retained bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return fmt.Errorf("MQTT client is not connected")
	}

	// Publish with QoS 1 without prefix
	token := c.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Published (raw) to %s", topic)
	}

	return nil
}

// Subscribe subscribes to a topic under the prefix. The subscription is
// restored automatically when the connection comes back.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullTopic := c.buildTopic(topic)
	c.subs[fullTopic] = subscription{qos: qos, handler: handler}

	if !c.isActive {
		// Picked up by resubscribe on connect
		return nil
	}

	token := c.client.Subscribe(fullTopic, qos, c.wrap(handler))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", fullTopic, token.Error())
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Subscribed to %s (QoS %d)", fullTopic, qos)
	}
	return nil
}

// Unsubscribe removes a subscription made with Subscribe
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullTopic := c.buildTopic(topic)
	if _, ok := c.subs[fullTopic]; !ok {
		return nil
	}
	delete(c.subs, fullTopic)

	if !c.isActive {
		return nil
	}

	token := c.client.Unsubscribe(fullTopic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", fullTopic, token.Error())
	}
	return nil
}

func (c *Client) resubscribe(client mqtt.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for topic, sub := range c.subs {
		token := client.Subscribe(topic, sub.qos, c.wrap(sub.handler))
		if token.Wait() && token.Error() != nil && c.logger != nil {
			c.logger.Printf("[MQTT] Failed to subscribe to %s: %v", topic, token.Error())
		}
	}
}

// wrap strips the prefix before handing messages to handler
func (c *Client) wrap(handler MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		handler(c.stripTopic(msg.Topic()), msg.Payload())
	}
}

func (c *Client) stripTopic(topic string) string {
	if c.config.Prefix == "" {
		return topic
	}
	return strings.TrimPrefix(topic, c.config.Prefix+"/")
}

// buildTopic constructs full topic path with prefix
func (c *Client) buildTopic(topic string) string {
	if c.config.Prefix == "" {
		return topic
	}
	return c.config.Prefix + "/" + topic
}

// IsConnected returns true if client is connected to broker
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive && c.client.IsConnected()
}

// GetConfig returns the current MQTT configuration
func (c *Client) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

var _ Messenger = (*Client)(nil)
