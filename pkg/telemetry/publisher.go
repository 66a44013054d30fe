// Package telemetry forwards lamp snapshots to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
)

const publishTimeout = 5 * time.Second

// Config carries the broker coordinates. Broker uses the paho URL form,
// e.g. "tcp://localhost:1883".
type Config struct {
	Broker   string
	Username string
	Password string
	Topic    string
}

// Publisher pushes snapshots to a single MQTT topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger log.FieldLogger
}

// NewPublisher connects to the broker and returns a ready publisher.
func NewPublisher(cfg Config, logger log.FieldLogger) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID("hl2000-panel-" + uuid.New().String())
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		logger: logger.WithField("component", "telemetry"),
	}, nil
}

// Publish sends one snapshot as JSON at QoS 1. Unknown telemetry values
// travel as nulls.
func (p *Publisher) Publish(snap lamp.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %v", p.topic, err)
	}

	p.logger.Debugf("Published snapshot: %s", snap)
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
