package events

import (
	"context"
	"encoding/json"
	"fmt"

	"qms-data/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient paho client wrapper
type MQTTClient struct {
	client mqtt.Client
}

// NewMQTTClient connects to the broker; auto-reconnect is on.
func NewMQTTClient(cfg *config.MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTClient{client: client}, nil
}

func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

type topicPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier publishes each event as JSON to <prefix>/<collection>.
type MQTTNotifier struct {
	pub    topicPublisher
	prefix string
	qos    byte
}

func NewMQTTNotifier(pub topicPublisher, prefix string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, prefix: prefix, qos: qos}
}

func (n *MQTTNotifier) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.prefix+"/"+e.Collection, n.qos, false, payload)
}
