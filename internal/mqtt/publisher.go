package mqtt

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"ambientd/internal/doze"
)

// Topics published under the prefix
const (
	TopicPulse  = "pulse"
	TopicStatus = "status"
)

// Pulse is the telemetry message for one pulse request
type Pulse struct {
	ID         string    `json:"id"`
	Reason     int       `json:"reason"`
	ReasonName string    `json:"reasonName"`
	ScreenX    float64   `json:"screenX"`
	ScreenY    float64   `json:"screenY"`
	Values     []float64 `json:"values,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewPulse builds a pulse message with a fresh ID
func NewPulse(reason doze.Reason, screenX, screenY float64, values []float64) Pulse {
	return Pulse{
		ID:         uuid.NewString(),
		Reason:     int(reason),
		ReasonName: reason.String(),
		ScreenX:    screenX,
		ScreenY:    screenY,
		Values:     values,
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher provides MQTT publishing for pulses and engine status
type Publisher struct {
	client Messenger
	logger *log.Logger
}

// NewPublisher creates a new Publisher instance
func NewPublisher(client Messenger, logger *log.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// PublishPulse publishes a pulse request
func (p *Publisher) PublishPulse(pulse Pulse) error {
	payload, err := json.Marshal(pulse)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("[MQTT Publisher] Failed to marshal pulse: %v", err)
		}
		return err
	}

	if err := p.client.PublishWithQoS(TopicPulse, 1, false, payload); err != nil {
		if p.logger != nil {
			p.logger.Printf("[MQTT Publisher] Failed to publish pulse %s: %v", pulse.ID, err)
		}
		return err
	}
	return nil
}

// PublishStatus publishes the engine snapshot as a retained message
func (p *Publisher) PublishStatus(status doze.Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("[MQTT Publisher] Failed to marshal status: %v", err)
		}
		return err
	}
	return p.client.PublishWithQoS(TopicStatus, 0, true, payload)
}

// PublishAggregated publishes arbitrary JSON data on a prefixed topic
func (p *Publisher) PublishAggregated(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("[MQTT Publisher] Failed to marshal aggregated data: %v", err)
		}
		return err
	}

	return p.client.PublishWithQoS(topic, 0, false, payload)
}
