package mqtt

import (
	"encoding/json"
	"log"
	"sync"

	"ambientd/internal/settings"
)

// discoveryPublishedKey is the settings key marking a completed discovery
const discoveryPublishedKey = "mqtt_discovery_published"

// FlagStore persists the discovery marker
type FlagStore interface {
	GetIntForUser(key string, def int, userID int) int
	PutIntForUser(key string, value int, userID int) error
}

// DiscoveryManager manages Home Assistant MQTT Discovery
type DiscoveryManager struct {
	mqttClient Messenger
	logger     *log.Logger
	store      FlagStore
	device     *DeviceInfo

	// Cache of pre-generated discovery configs
	discoveryConfigs map[string][]byte
	discoveryMu      sync.RWMutex
}

// NewDiscoveryManager creates a new DiscoveryManager instance
func NewDiscoveryManager(client Messenger, logger *log.Logger, store FlagStore, device *DeviceInfo) *DiscoveryManager {
	return &DiscoveryManager{
		mqttClient:       client,
		logger:           logger,
		store:            store,
		device:           device,
		discoveryConfigs: make(map[string][]byte),
	}
}

// Entities returns the entities ambientd exposes
func (d *DiscoveryManager) Entities() []*EntityConfig {
	return []*EntityConfig{
		{
			EntityID:        "last_pulse",
			Name:            "Last pulse",
			Component:       ComponentSensor,
			StateTopic:      TopicPulse,
			AttributesTopic: TopicPulse,
			ValueTemplate:   "{{ value_json.reasonName }}",
			Icon:            "mdi:gesture-tap",
			DeviceInfo:      d.device,
		},
		{
			EntityID:      "listening",
			Name:          "Doze sensors listening",
			Component:     ComponentBinarySensor,
			StateTopic:    TopicStatus,
			ValueTemplate: "{{ 'ON' if value_json.listening else 'OFF' }}",
			PayloadOn:     "ON",
			PayloadOff:    "OFF",
			DeviceInfo:    d.device,
		},
		{
			EntityID:      "proximity_near",
			Name:          "Proximity near",
			Component:     ComponentBinarySensor,
			StateTopic:    TopicStatus,
			ValueTemplate: "{{ 'ON' if value_json.proxNear else 'OFF' }}",
			PayloadOn:     "ON",
			PayloadOff:    "OFF",
			DeviceClass:   "occupancy",
			DeviceInfo:    d.device,
		},
	}
}

// ShouldPublishDiscovery checks if discovery configs still need publishing
func (d *DiscoveryManager) ShouldPublishDiscovery() bool {
	if d.store == nil {
		return true
	}
	return d.store.GetIntForUser(discoveryPublishedKey, 0, settings.UserSystem) == 0
}

// PublishDiscoveryConfig publishes discovery config for a single entity
func (d *DiscoveryManager) PublishDiscoveryConfig(cfg *EntityConfig) error {
	if cfg == nil {
		return nil
	}

	configJSON := d.generateDiscoveryConfig(cfg)
	if configJSON == nil {
		return nil
	}

	// Topic: homeassistant/{component}/ambientd/{entity_id}/config
	return d.mqttClient.PublishRaw(DiscoveryTopic(cfg), configJSON, true)
}

// DiscoveryTopic returns the retained config topic of an entity
func DiscoveryTopic(cfg *EntityConfig) string {
	return "homeassistant/" + string(cfg.Component) + "/ambientd/" + cfg.EntityID + "/config"
}

// PublishAll publishes discovery configs for every entity
func (d *DiscoveryManager) PublishAll() error {
	entities := d.Entities()
	for _, cfg := range entities {
		if err := d.PublishDiscoveryConfig(cfg); err != nil {
			if d.logger != nil {
				d.logger.Printf("[MQTT Discovery] Failed to publish discovery for %s: %v", cfg.EntityID, err)
			}
		}
	}

	d.markDiscoveryPublished()

	if d.logger != nil {
		d.logger.Printf("[MQTT Discovery] Published discovery config for %d entities", len(entities))
	}
	return nil
}

// generateDiscoveryConfig generates and caches Home Assistant discovery config
func (d *DiscoveryManager) generateDiscoveryConfig(cfg *EntityConfig) []byte {
	d.discoveryMu.RLock()
	if config, ok := d.discoveryConfigs[cfg.EntityID]; ok {
		d.discoveryMu.RUnlock()
		return config
	}
	d.discoveryMu.RUnlock()

	mqttCfg := d.mqttClient.GetConfig()
	topic := func(t string) string {
		if mqttCfg.Prefix == "" {
			return t
		}
		return mqttCfg.Prefix + "/" + t
	}

	discoveryConfig := map[string]interface{}{
		"name":        cfg.Name,
		"unique_id":   "ambientd_" + cfg.EntityID,
		"state_topic": topic(cfg.StateTopic),
	}

	if cfg.AttributesTopic != "" {
		discoveryConfig["json_attributes_topic"] = topic(cfg.AttributesTopic)
	}
	if cfg.ValueTemplate != "" {
		discoveryConfig["value_template"] = cfg.ValueTemplate
	}
	if cfg.PayloadOn != "" {
		discoveryConfig["payload_on"] = cfg.PayloadOn
		discoveryConfig["payload_off"] = cfg.PayloadOff
	}
	if cfg.DeviceClass != "" {
		discoveryConfig["device_class"] = cfg.DeviceClass
	}
	if cfg.Icon != "" {
		discoveryConfig["icon"] = cfg.Icon
	}

	// Device information for grouping in Home Assistant
	if cfg.DeviceInfo != nil {
		discoveryConfig["device"] = map[string]interface{}{
			"identifiers":  cfg.DeviceInfo.Identifiers,
			"name":         cfg.DeviceInfo.Name,
			"model":        cfg.DeviceInfo.Model,
			"manufacturer": cfg.DeviceInfo.Manufacturer,
		}
	}

	configJSON, err := json.Marshal(discoveryConfig)
	if err != nil {
		if d.logger != nil {
			d.logger.Printf("[MQTT Discovery] Failed to marshal discovery config: %v", err)
		}
		return nil
	}

	d.discoveryMu.Lock()
	d.discoveryConfigs[cfg.EntityID] = configJSON
	d.discoveryMu.Unlock()

	return configJSON
}

// markDiscoveryPublished records that discovery was published
func (d *DiscoveryManager) markDiscoveryPublished() {
	if d.store == nil {
		return
	}
	if err := d.store.PutIntForUser(discoveryPublishedKey, 1, settings.UserSystem); err != nil {
		if d.logger != nil {
			d.logger.Printf("[MQTT Discovery] Failed to mark discovery as published: %v", err)
		}
	}
}
