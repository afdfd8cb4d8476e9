// Package mqtttest provides an in-memory mqtt.ClientAPI for tests.
package mqtttest

import (
	"errors"
	"sync"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/mqtt"
)

var ErrNotSubscribed = errors.New("topic not subscribed")

type Published struct {
	Topic   string
	Payload []byte
	Retain  bool
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

func (m message) Topic() string   { return m.topic }
func (m message) Payload() []byte { return m.payload }
func (m message) Retained() bool  { return m.retained }

// Client records subscriptions and publications. SubscribeErr, when set, is
// returned by every Subscribe call.
type Client struct {
	SubscribeErr error

	mu           sync.Mutex
	handlers     map[string]mqtt.Handler
	unsubscribed []string
	published    []Published
}

var _ mqtt.ClientAPI = (*Client)(nil)

func New() *Client {
	return &Client{handlers: map[string]mqtt.Handler{}}
}

func (c *Client) Subscribe(topic string, cb mqtt.Handler) error {
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = cb
	return nil
}

func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[topic]; !ok {
		return ErrNotSubscribed
	}
	delete(c.handlers, topic)
	c.unsubscribed = append(c.unsubscribed, topic)
	return nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	return c.PublishWith(topic, payload, false)
}

func (c *Client) PublishWith(topic string, payload []byte, retain bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, Published{Topic: topic, Payload: append([]byte(nil), payload...), Retain: retain})
	return nil
}

// Deliver hands payload to the handler subscribed on topic.
func (c *Client) Deliver(topic string, payload []byte) error {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()
	if !ok {
		return ErrNotSubscribed
	}
	h(message{topic: topic, payload: payload})
	return nil
}

func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		out = append(out, t)
	}
	return out
}

func (c *Client) Unsubscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.unsubscribed...)
}

func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}
