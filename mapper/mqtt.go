package mapper

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is called for every payload received on the robot topic.
// err is set when the payload could not be decoded.
type MessageHandler func(robotID string, msg Message, err error)

// MQTTClient manages the MQTT connection and the robot topic subscription
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	messageHandler MessageHandler
	isConnected    bool
	done           chan struct{}
	closeOnce      sync.Once
	mu             sync.RWMutex
}

// envOr returns the environment variable key, or fallback when it is unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitMQTT creates an MQTT client for the configured robot and starts
// connecting in the background. When neither MQTT_BROKER nor mqtt.broker is
// set, MQTT is disabled and InitMQTT returns nil, nil.
func InitMQTT(config *Config, handler MessageHandler) (*MQTTClient, error) {
	var configured string
	if config != nil {
		configured = config.MQTT.Broker
	}
	broker := envOr("MQTT_BROKER", configured)
	if broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || config.Robot.ID == "" {
		return nil, fmt.Errorf("MQTT enabled but no robot configuration provided")
	}

	client := &MQTTClient{
		config:         config,
		messageHandler: handler,
		done:           make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(envOr("MQTT_CLIENT_ID", orDefault(config.MQTT.ClientID, DefaultClientID)))

	if username := envOr("MQTT_USERNAME", config.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// Encoder counts are cumulative; out-of-order delivery would replay deltas.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected to broker")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying connection in %v...", retryDelay)
		select {
		case <-c.done:
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the robot topic. It runs again after every reconnect.
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	robotID := c.config.Robot.ID
	topic := c.config.Robot.TopicOrDefault()

	log.Printf("[MQTT] subscribing to %s for robot %s", topic, robotID)
	token := client.Subscribe(topic, 1, c.createMessageHandler(robotID))
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] subscribed to %s", topic)
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] reconnecting...")
}

// createMessageHandler decodes robot payloads and forwards them to the
// user's handler.
func (c *MQTTClient) createMessageHandler(robotID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		decoded, err := ParseMessage(msg.Payload())
		if err != nil {
			log.Printf("[MQTT] error decoding message for %s (topic: %s): %v", robotID, msg.Topic(), err)
		}
		if c.messageHandler != nil {
			c.messageHandler(robotID, decoded, err)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect stops any pending connection attempt and closes the connection.
func (c *MQTTClient) Disconnect() {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
	})
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting from broker...")
		c.client.Disconnect(250)
	}
	c.setConnected(false)
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock wraps a provided mqtt.Client; used by tests.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler MessageHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		messageHandler: handler,
		done:           make(chan struct{}),
	}
}
