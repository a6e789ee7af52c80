// Package transport connects the agent to its MQTT command channel: inbound
// commands on one topic, outbound events on another.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// QoS levels for the two topics.
const (
	SubscribeQoS byte = 1
	PublishQoS   byte = 0
)

const (
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
	subscribeTimeout      = 5 * time.Second
	disconnectQuiesceMs   = 250
)

var (
	// ErrNotConnected is returned by Publish while the broker is unreachable.
	ErrNotConnected = errors.New("mqtt not connected")
	// ErrConnectPending is returned by Connect when the first session is not
	// up within the timeout. The client keeps retrying in the background.
	ErrConnectPending = errors.New("mqtt connect still pending")
)

// Options configures a Client.
type Options struct {
	Broker         string
	ClientID       string
	CAFile         string
	CertFile       string
	KeyFile        string
	SubscribeTopic string
	PublishTopic   string
	ConnectTimeout time.Duration
}

// Handler receives the payload of every inbound message, in arrival order.
type Handler func(payload []byte)

// Client is a paho MQTT client bound to one subscribe and one publish topic.
type Client struct {
	opts    Options
	handler Handler

	mu     sync.Mutex
	client mqtt.Client

	// newClient is replaced in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// New creates an unconnected Client.
func New(opts Options, handler Handler) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	return &Client{opts: opts, handler: handler, newClient: mqtt.NewClient}
}

// TLSConfig builds the mutual-TLS configuration used by AWS IoT style
// brokers. It returns nil when no certificate material is configured.
func TLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	if caFile == "" && certFile == "" {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
		cfg.RootCAs = pool
	}
	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// clientOptions translates Options into paho options.
func (c *Client) clientOptions() (*mqtt.ClientOptions, error) {
	tlsCfg, err := TLSConfig(c.opts.CAFile, c.opts.CertFile, c.opts.KeyFile)
	if err != nil {
		return nil, err
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(c.opts.Broker)
	o.SetClientID(c.opts.ClientID)
	o.SetCleanSession(true)
	o.SetOrderMatters(true)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	o.SetMaxReconnectInterval(30 * time.Second)
	if tlsCfg != nil {
		o.SetTLSConfig(tlsCfg)
	}
	o.SetOnConnectHandler(c.onConnect)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", c.opts.Broker).Msg("MQTT connection lost, reconnecting")
	})
	return o, nil
}

// Connect dials the broker and waits up to ConnectTimeout for the first
// session. Subscription happens in the connect handler so it is restored
// after every reconnect.
func (c *Client) Connect(ctx context.Context) error {
	o, err := c.clientOptions()
	if err != nil {
		return err
	}
	cl := c.newClient(o)
	c.mu.Lock()
	c.client = cl
	c.mu.Unlock()

	log.Info().Str("broker", c.opts.Broker).Str("clientId", c.opts.ClientID).Msg("Connecting to MQTT broker")
	token := cl.Connect()
	select {
	case <-token.Done():
	case <-time.After(c.opts.ConnectTimeout):
		return fmt.Errorf("mqtt connect to %s after %s: %w", c.opts.Broker, c.opts.ConnectTimeout, ErrConnectPending)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", c.opts.Broker, err)
	}
	return nil
}

// onConnect subscribes to the command topic and announces the agent.
func (c *Client) onConnect(cl mqtt.Client) {
	log.Info().Str("broker", c.opts.Broker).Msg("MQTT connection established")

	token := cl.Subscribe(c.opts.SubscribeTopic, SubscribeQoS, c.onMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		log.Error().Str("topic", c.opts.SubscribeTopic).Msg("MQTT subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", c.opts.SubscribeTopic).Msg("MQTT subscribe failed")
		return
	}
	log.Info().Str("topic", c.opts.SubscribeTopic).Uint8("qos", SubscribeQoS).Msg("Subscribed to command topic")

	if err := c.publish(cl, OnlineEvent(c.opts.ClientID)); err != nil {
		log.Warn().Err(err).Msg("Failed to publish online event")
	}
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	log.Debug().
		Str("topic", msg.Topic()).
		Uint16("messageId", msg.MessageID()).
		Int("size", len(msg.Payload())).
		Msg("Command message received")
	if c.handler != nil {
		c.handler(msg.Payload())
	}
}

// Publish sends ev to the outbound topic at QoS 0.
func (c *Client) Publish(_ context.Context, ev Event) error {
	c.mu.Lock()
	cl := c.client
	c.mu.Unlock()
	if cl == nil || !cl.IsConnected() {
		return ErrNotConnected
	}
	return c.publish(cl, ev)
}

func (c *Client) publish(cl mqtt.Client, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Event, err)
	}
	token := cl.Publish(c.opts.PublishTopic, PublishQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s event: timeout", ev.Event)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Event, err)
	}
	log.Debug().Str("topic", c.opts.PublishTopic).Str("event", ev.Event).Msg("Event published")
	return nil
}

// Disconnect closes the session, allowing in-flight work a short grace period.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cl := c.client
	c.mu.Unlock()
	if cl != nil && cl.IsConnected() {
		cl.Disconnect(disconnectQuiesceMs)
		log.Info().Msg("MQTT disconnected")
	}
}
