package surface

import (
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// FrameHandler is called for every message on the frame topic. err is set
// when the payload could not be parsed; frame is nil in that case.
type FrameHandler func(frame *Frame, err error)

// MQTTClient manages the MQTT connection and the frame subscription
type MQTTClient struct {
	client      mqtt.Client
	frameTopic  string
	handler     FrameHandler
	isConnected bool
	done        chan struct{}
	closeOnce   sync.Once
	log         *zap.SugaredLogger
	mu          sync.RWMutex
	connectOnce sync.Once
}

// InitMQTT creates the MQTT client. Nothing is subscribed and no frame is
// delivered to handler until Connect is called. If neither MQTT_BROKER nor config.MQTT.Broker is set, MQTT is disabled and
// this returns nil, nil.
func InitMQTT(config *Config, handler FrameHandler, opts ...Option) (*MQTTClient, error) {
	log := buildOptions(opts).log

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Info("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil || config.MQTT.FrameTopic == "" {
		return nil, fmt.Errorf("MQTT enabled but no frame topic configured")
	}

	c := newMQTTClient(nil, config.MQTT.FrameTopic, handler, log)

	options := mqtt.NewClientOptions()
	options.AddBroker(broker)
	options.SetClientID(envOr("MQTT_CLIENT_ID", config.MQTT.ClientID, "surfacemesh"))

	if username := envOr("MQTT_USERNAME", config.MQTT.Username, ""); username != "" {
		options.SetUsername(username)
		options.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password, ""))
	}

	options.SetAutoReconnect(true)
	options.SetConnectRetry(true)
	options.SetConnectRetryInterval(5 * time.Second)
	options.SetMaxReconnectInterval(60 * time.Second)
	options.SetKeepAlive(60 * time.Second)
	options.SetPingTimeout(10 * time.Second)
	options.SetCleanSession(false) // Preserve subscriptions on reconnect
	options.SetOrderMatters(true)  // Frames are processed in arrival order

	options.SetOnConnectHandler(c.onConnect)
	options.SetConnectionLostHandler(c.onConnectionLost)
	options.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.log.Info("[MQTT] reconnecting...")
	})

	c.client = mqtt.NewClient(options)
	return c, nil
}

// Connect starts connecting in the background. The frame topic is subscribed
// on every successful connection. Calls after the first do nothing.
func (c *MQTTClient) Connect() {
	c.connectOnce.Do(func() { go c.connectWithRetry() })
}

func newMQTTClient(client mqtt.Client, frameTopic string, handler FrameHandler, log *zap.SugaredLogger) *MQTTClient {
	return &MQTTClient{
		client:     client,
		frameTopic: frameTopic,
		handler:    handler,
		done:       make(chan struct{}),
		log:        log,
	}
}

// AttachMQTT wraps an already connected client and subscribes it to frameTopic
func AttachMQTT(client mqtt.Client, frameTopic string, handler FrameHandler, opts ...Option) (*MQTTClient, error) {
	c := newMQTTClient(client, frameTopic, handler, buildOptions(opts).log)
	if err := c.subscribe(client); err != nil {
		return nil, err
	}
	c.setConnected(client.IsConnected())
	return c, nil
}

// envOr returns the environment variable key, else fallback, else def
func envOr(key, fallback, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fallback != "" {
		return fallback
	}
	return def
}

// connectWithRetry attempts to connect to the MQTT broker with exponential
// backoff until it succeeds or Disconnect is called
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.log.Info("[MQTT] connecting to broker...")
		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.log.Info("[MQTT] connected to broker")
				c.setConnected(true)
				return
			}
			c.log.Warnf("[MQTT] connection failed: %v", token.Error())
		} else {
			c.log.Warn("[MQTT] connection timeout")
		}

		c.log.Infof("[MQTT] retrying connection in %v...", retryDelay)
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

// onConnect subscribes to the frame topic whenever the connection is (re)established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	if err := c.subscribe(client); err != nil {
		c.log.Errorf("[MQTT] %v", err)
	}
}

func (c *MQTTClient) subscribe(client mqtt.Client) error {
	c.log.Infof("[MQTT] subscribing to %s", c.frameTopic)
	token := client.Subscribe(c.frameTopic, 0, c.handleFrame)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", c.frameTopic, token.Error())
	}
	c.log.Infof("[MQTT] subscribed to %s", c.frameTopic)
	return nil
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.log.Warnf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) handleFrame(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	c.log.Debugf("[MQTT] received frame (topic: %s, size: %d bytes)", msg.Topic(), len(payload))

	frame, err := ParseFrame(payload)
	if err != nil {
		c.log.Errorf("[MQTT] error decoding frame: %v", err)
	}
	if c.handler != nil {
		c.handler(frame, err)
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

// Disconnect stops any pending connection attempt and closes the connection
func (c *MQTTClient) Disconnect() {
	c.closeOnce.Do(func() { close(c.done) })
	if c.client != nil && c.client.IsConnected() {
		c.log.Info("[MQTT] disconnecting from broker...")
		c.client.Disconnect(250) // 250ms quiesce time
	}
	c.setConnected(false)
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}
