package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"ambientd/internal/sensors"
)

// PluginTransport delivers plugin sensor events received over MQTT.
// Events arrive on "plugin/<type>/event" with a JSON payload, either
// {"values":[...]} or a bare array of numbers.
type PluginTransport struct {
	client Messenger
	post   func(func())
	logger *log.Logger

	mu        sync.Mutex
	listeners map[sensors.PluginType][]sensors.PluginListener
}

// NewPluginTransport creates a transport. post runs dispatches on the
// engine's queue; nil dispatches on the caller's goroutine.
func NewPluginTransport(client Messenger, post func(func()), logger *log.Logger) *PluginTransport {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &PluginTransport{
		client:    client,
		post:      post,
		logger:    logger,
		listeners: make(map[sensors.PluginType][]sensors.PluginListener),
	}
}

// PluginTopic returns the topic events of type t arrive on
func PluginTopic(t sensors.PluginType) string {
	return "plugin/" + t.String() + "/event"
}

// RegisterPluginListener subscribes to the type's topic on the first
// listener
func (p *PluginTransport) RegisterPluginListener(t sensors.PluginType, l sensors.PluginListener) {
	p.mu.Lock()
	for _, existing := range p.listeners[t] {
		if existing == l {
			p.mu.Unlock()
			return
		}
	}
	p.listeners[t] = append(p.listeners[t], l)
	first := len(p.listeners[t]) == 1
	p.mu.Unlock()

	if !first || p.client == nil {
		return
	}
	handler := func(topic string, payload []byte) {
		p.handleMessage(t, payload)
	}
	if err := p.client.Subscribe(PluginTopic(t), 1, handler); err != nil && p.logger != nil {
		p.logger.Printf("[MQTT Plugins] Failed to subscribe for %s: %v", t, err)
	}
}

// UnregisterPluginListener unsubscribes when the last listener of the type
// goes away
func (p *PluginTransport) UnregisterPluginListener(t sensors.PluginType, l sensors.PluginListener) {
	p.mu.Lock()
	list := p.listeners[t]
	found := false
	for i, existing := range list {
		if existing == l {
			p.listeners[t] = append(list[:i:i], list[i+1:]...)
			found = true
			break
		}
	}
	empty := len(p.listeners[t]) == 0
	if empty {
		delete(p.listeners, t)
	}
	p.mu.Unlock()

	if !found || !empty || p.client == nil {
		return
	}
	if err := p.client.Unsubscribe(PluginTopic(t)); err != nil && p.logger != nil {
		p.logger.Printf("[MQTT Plugins] Failed to unsubscribe for %s: %v", t, err)
	}
}

// ListenerCount returns the number of listeners for a type
func (p *PluginTransport) ListenerCount(t sensors.PluginType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[t])
}

// Deliver posts an event to the listeners of its type
func (p *PluginTransport) Deliver(event sensors.PluginEvent) {
	p.post(func() {
		p.mu.Lock()
		listeners := append([]sensors.PluginListener(nil), p.listeners[event.Type]...)
		p.mu.Unlock()

		for _, l := range listeners {
			l.OnPluginEvent(event)
		}
	})
}

func (p *PluginTransport) handleMessage(t sensors.PluginType, payload []byte) {
	values, err := DecodePluginValues(payload)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("[MQTT Plugins] Dropping %s event: %v", t, err)
		}
		return
	}
	p.Deliver(sensors.PluginEvent{Type: t, Values: values})
}

// DecodePluginValues parses a plugin event payload. An empty payload has
// no values.
func DecodePluginValues(payload []byte) ([]float64, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var values []float64
		if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
			return nil, fmt.Errorf("invalid values array: %w", err)
		}
		return values, nil
	}

	var msg struct {
		Values []float64 `json:"values"`
	}
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return nil, fmt.Errorf("invalid plugin event: %w", err)
	}
	return msg.Values, nil
}
