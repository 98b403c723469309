package mqtt

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// IPublisher is the publish capability handed to the services.
type IPublisher interface {
	PublishMessage(message string) error
	PublishQoS(qos byte, message string) error
	Close()
}

// Publisher publishes to a fixed topic on a shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
	log    *logrus.Entry
}

func NewPublisher(client mqtt.Client, topic string, log *logrus.Entry) *Publisher {
	return &Publisher{client: client, topic: topic, log: log}
}

func (p *Publisher) PublishMessage(message string) error {
	return p.PublishQoS(0, message)
}

func (p *Publisher) PublishQoS(qos byte, message string) error {
	token := p.client.Publish(p.topic, qos, false, message)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}
	p.log.Debugf("mqtt: published to %s (qos=%d)", p.topic, qos)
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.log.Info("mqtt: publisher disconnected")
	}
}
