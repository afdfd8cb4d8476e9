package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const defaultBrokerURL = "mqtt://mosquitto:1883"

var (
	ErrConnectTimeout = errors.New("mqtt connect timed out")
	ErrInvalidCA      = errors.New("no certificates found in mqtt ca file")
)

type Client struct {
	cli paho.Client
}

// ClientAPI is the minimal surface area arm-bridge needs.
// It lets the bridge and status publisher run against a fake in tests.
type ClientAPI interface {
	Subscribe(topic string, cb Handler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) error
	PublishWith(topic string, payload []byte, retain bool) error
}

// Message is the part of a received MQTT message handlers look at.
// paho.Message satisfies it.
type Message interface {
	Topic() string
	Payload() []byte
	Retained() bool
}

type Handler func(Message)

type broker struct {
	server   string
	username string
	password string
	secure   bool
}

func parseBroker(brokerURL string) (broker, error) {
	raw := strings.TrimSpace(brokerURL)
	if raw == "" {
		raw = defaultBrokerURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return broker{}, fmt.Errorf("parse broker url: %w", err)
	}
	if u.Host == "" {
		return broker{}, fmt.Errorf("broker url %q has no host", raw)
	}
	var b broker
	switch u.Scheme {
	case "mqtt", "tcp":
		b.server = "tcp://" + u.Host
	case "ssl", "tls", "mqtts":
		b.server = "ssl://" + u.Host
		b.secure = true
	case "ws":
		b.server = "ws://" + u.Host + u.Path
	case "wss":
		b.server = "wss://" + u.Host + u.Path
		b.secure = true
	default:
		return broker{}, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.User != nil {
		b.username = u.User.Username()
		b.password, _ = u.User.Password()
	}
	return b, nil
}

// tlsConfig verifies the broker against the certificates in caFile, or
// against the system roots when caFile is empty.
func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if strings.TrimSpace(caFile) == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read mqtt ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCA, caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// Connect dials the broker. caFile is only read for ssl/tls/mqtts/wss URLs.
func Connect(brokerURL, clientID, caFile string) (*Client, error) {
	b, err := parseBroker(brokerURL)
	if err != nil {
		return nil, err
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(b.server)
	if strings.TrimSpace(clientID) == "" {
		clientID = "arm-bridge-" + time.Now().Format("150405.000")
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	// Subscriptions are replayed by paho on reconnect.
	opts.SetResumeSubs(true)
	opts.SetCleanSession(false)
	if b.username != "" {
		opts.SetUsername(b.username)
		opts.SetPassword(b.password)
	}
	if b.secure {
		tc, err := tlsConfig(caFile)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}
	opts.OnConnect = func(_ paho.Client) { slog.Info("mqtt connected", "broker", b.server) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { slog.Warn("mqtt connection lost", "error", err) }

	cli := paho.NewClient(opts)
	tok := cli.Connect()
	if ok := tok.WaitTimeout(15 * time.Second); !ok {
		return nil, ErrConnectTimeout
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Subscribe(topic string, cb Handler) error {
	t := c.cli.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) { cb(m) })
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	slog.Info("mqtt subscribed", "topic", topic)
	return nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	return c.PublishWith(topic, payload, false)
}

func (c *Client) PublishWith(topic string, payload []byte, retain bool) error {
	t := c.cli.Publish(topic, 0, retain, payload)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (c *Client) Unsubscribe(topic string) error {
	t := c.cli.Unsubscribe(topic)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	slog.Info("mqtt unsubscribed", "topic", topic)
	return nil
}

func (c *Client) Close() {
	if c == nil || c.cli == nil {
		return
	}
	c.cli.Disconnect(1000)
}
