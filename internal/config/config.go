package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"ambientd/internal/posture"
)

// Environment variable names
const (
	EnvAddr          = "AMBIENTD_ADDR"
	EnvJWTSecret     = "AMBIENTD_JWT_SECRET"
	EnvJWTExpiration = "AMBIENTD_JWT_EXPIRATION"
	EnvNoAuth        = "AMBIENTD_NO_AUTH"
	EnvDBPath        = "AMBIENTD_DB_PATH"
	EnvDeviceProfile = "AMBIENTD_DEVICE_PROFILE"
	// MQTT settings
	EnvMQTTBroker   = "AMBIENTD_MQTT_BROKER"
	EnvMQTTClientID = "AMBIENTD_MQTT_CLIENT_ID"
	EnvMQTTUsername = "AMBIENTD_MQTT_USERNAME"
	EnvMQTTPassword = "AMBIENTD_MQTT_PASSWORD"
	EnvMQTTPrefix   = "AMBIENTD_MQTT_PREFIX"
	EnvMQTTUseTLS   = "AMBIENTD_MQTT_USE_TLS"
	// Ambient display
	EnvDozeEnabled            = "AMBIENTD_DOZE_ENABLED"
	EnvAlwaysOn               = "AMBIENTD_ALWAYS_ON"
	EnvTapSensorTypes         = "AMBIENTD_TAP_SENSOR_TYPES"
	EnvDoubleTapSensorType    = "AMBIENTD_DOUBLE_TAP_SENSOR_TYPE"
	EnvLongPressSensorType    = "AMBIENTD_LONG_PRESS_SENSOR_TYPE"
	EnvUdfpsLongPressType     = "AMBIENTD_UDFPS_LONG_PRESS_SENSOR_TYPE"
	EnvQuickPickupSensorType  = "AMBIENTD_QUICK_PICKUP_SENSOR_TYPE"
	EnvPickupAvailable        = "AMBIENTD_PICKUP_AVAILABLE"
	EnvWakeGestureAvailable   = "AMBIENTD_WAKE_GESTURE_AVAILABLE"
	EnvQuickPickupEnabled     = "AMBIENTD_QUICK_PICKUP_ENABLED"
	EnvScreenOffUdfps         = "AMBIENTD_SCREEN_OFF_UDFPS"
	EnvWakeLockScreenDebounce = "AMBIENTD_WAKE_LOCK_SCREEN_DEBOUNCE_MS"
	EnvSelectiveProx          = "AMBIENTD_SELECTIVE_PROX"
	EnvSingleTapProxPostures  = "AMBIENTD_SINGLE_TAP_PROX_POSTURES"
	EnvLongPressProx          = "AMBIENTD_LONG_PRESS_PROX"
	EnvPulseOnSigMotion       = "AMBIENTD_PULSE_ON_SIG_MOTION"
	EnvDoubleTapReportsCoords = "AMBIENTD_DOUBLE_TAP_COORDS"
)

// Default values
const (
	DefaultAddr          = ":8080"
	DefaultJWTExpiration = 24 * time.Hour
	DefaultNoAuth        = false
	DefaultDBPath        = "ambientd.db"
	DefaultDeviceProfile = "device.yaml"
	// MQTT defaults
	DefaultMQTTBroker   = ""
	DefaultMQTTClientID = ""
	DefaultMQTTUsername = ""
	DefaultMQTTPassword = ""
	DefaultMQTTPrefix   = "ambientd"
	DefaultMQTTUseTLS   = false
	// Ambient display defaults
	DefaultDozeEnabled            = true
	DefaultAlwaysOn               = false
	DefaultPickupAvailable        = true
	DefaultWakeGestureAvailable   = false
	DefaultQuickPickupEnabled     = false
	DefaultScreenOffUdfps         = false
	DefaultWakeLockScreenDebounce = 5000 * time.Millisecond
	DefaultSelectiveProx          = false
	DefaultLongPressProx          = false
	DefaultPulseOnSigMotion       = false
	DefaultDoubleTapReportsCoords = false
)

// Config holds all application configuration.
// All access should be through getter methods for thread safety.
type Config struct {
	mu       sync.RWMutex
	filePath string
	dirty    bool // tracks if config was modified

	// Server settings
	addr string

	// Security settings
	jwtSecret     string
	jwtExpiration time.Duration
	noAuth        bool

	// Storage settings
	dbPath        string
	deviceProfile string

	// MQTT settings
	mqttBroker   string
	mqttClientID string
	mqttUsername string
	mqttPassword string
	mqttPrefix   string
	mqttUseTLS   bool

	// Ambient display settings
	dozeEnabled            bool
	alwaysOn               bool
	tapSensorTypes         []string
	doubleTapSensorType    string
	longPressSensorType    string
	udfpsLongPressType     string
	quickPickupSensorType  string
	pickupAvailable        bool
	wakeGestureAvailable   bool
	quickPickupEnabled     bool
	screenOffUdfps         bool
	wakeLockScreenDebounce time.Duration
	selectiveProx          bool
	singleTapProxPostures  []posture.Posture
	longPressProx          bool
	pulseOnSigMotion       bool
	doubleTapReportsCoords bool
}

// Load loads configuration from .env file or creates it with defaults.
// This is the main entry point for configuration initialization.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	// Set defaults first
	cfg.setDefaults()

	// Try to load existing file
	if err := cfg.loadFromFile(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		// File doesn't exist - will be created with defaults
		cfg.dirty = true
	}

	// Generate JWT secret if empty
	if cfg.jwtSecret == "" {
		secret, err := generateSecureSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.jwtSecret = secret
		cfg.dirty = true
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Save if config was modified (new file or generated secret)
	if cfg.dirty {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	return cfg, nil
}

// setDefaults initializes all fields with default values.
func (c *Config) setDefaults() {
	c.addr = DefaultAddr
	c.jwtSecret = ""
	c.jwtExpiration = DefaultJWTExpiration
	c.noAuth = DefaultNoAuth
	c.dbPath = DefaultDBPath
	c.deviceProfile = DefaultDeviceProfile
	// MQTT defaults
	c.mqttBroker = DefaultMQTTBroker
	c.mqttClientID = DefaultMQTTClientID
	c.mqttUsername = DefaultMQTTUsername
	c.mqttPassword = DefaultMQTTPassword
	c.mqttPrefix = DefaultMQTTPrefix
	c.mqttUseTLS = DefaultMQTTUseTLS
	// Ambient display defaults
	c.dozeEnabled = DefaultDozeEnabled
	c.alwaysOn = DefaultAlwaysOn
	c.tapSensorTypes = nil
	c.doubleTapSensorType = ""
	c.longPressSensorType = ""
	c.udfpsLongPressType = ""
	c.quickPickupSensorType = ""
	c.pickupAvailable = DefaultPickupAvailable
	c.wakeGestureAvailable = DefaultWakeGestureAvailable
	c.quickPickupEnabled = DefaultQuickPickupEnabled
	c.screenOffUdfps = DefaultScreenOffUdfps
	c.wakeLockScreenDebounce = DefaultWakeLockScreenDebounce
	c.selectiveProx = DefaultSelectiveProx
	c.singleTapProxPostures = nil
	c.longPressProx = DefaultLongPressProx
	c.pulseOnSigMotion = DefaultPulseOnSigMotion
	c.doubleTapReportsCoords = DefaultDoubleTapReportsCoords
}

// loadFromFile reads configuration from .env file.
func (c *Config) loadFromFile() error {
	values, err := godotenv.Read(c.filePath)
	if err != nil {
		return err
	}

	c.applyValues(values)
	return nil
}

// applyValues applies parsed key-value pairs to config.
func (c *Config) applyValues(values map[string]string) {
	if v, ok := values[EnvAddr]; ok && v != "" {
		c.addr = v
	}

	if v, ok := values[EnvJWTSecret]; ok && v != "" {
		c.jwtSecret = v
	}

	if v, ok := values[EnvJWTExpiration]; ok && v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.jwtExpiration = time.Duration(seconds) * time.Second
		}
	}

	if v, ok := values[EnvNoAuth]; ok {
		c.noAuth = parseBool(v)
	}

	if v, ok := values[EnvDBPath]; ok && v != "" {
		c.dbPath = v
	}
	if v, ok := values[EnvDeviceProfile]; ok && v != "" {
		c.deviceProfile = v
	}

	// MQTT settings
	if v, ok := values[EnvMQTTBroker]; ok {
		c.mqttBroker = v
	}
	if v, ok := values[EnvMQTTClientID]; ok {
		c.mqttClientID = v
	}
	if v, ok := values[EnvMQTTUsername]; ok {
		c.mqttUsername = v
	}
	if v, ok := values[EnvMQTTPassword]; ok {
		c.mqttPassword = v
	}
	if v, ok := values[EnvMQTTPrefix]; ok {
		c.mqttPrefix = v
	}
	if v, ok := values[EnvMQTTUseTLS]; ok {
		c.mqttUseTLS = parseBool(v)
	}

	// Ambient display settings
	applyBool(values, EnvDozeEnabled, &c.dozeEnabled)
	applyBool(values, EnvAlwaysOn, &c.alwaysOn)
	if v, ok := values[EnvTapSensorTypes]; ok {
		c.tapSensorTypes = splitList(v)
	}
	applyString(values, EnvDoubleTapSensorType, &c.doubleTapSensorType)
	applyString(values, EnvLongPressSensorType, &c.longPressSensorType)
	applyString(values, EnvUdfpsLongPressType, &c.udfpsLongPressType)
	applyString(values, EnvQuickPickupSensorType, &c.quickPickupSensorType)
	applyBool(values, EnvPickupAvailable, &c.pickupAvailable)
	applyBool(values, EnvWakeGestureAvailable, &c.wakeGestureAvailable)
	applyBool(values, EnvQuickPickupEnabled, &c.quickPickupEnabled)
	applyBool(values, EnvScreenOffUdfps, &c.screenOffUdfps)
	if v, ok := values[EnvWakeLockScreenDebounce]; ok && v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			c.wakeLockScreenDebounce = time.Duration(ms) * time.Millisecond
		}
	}
	applyBool(values, EnvSelectiveProx, &c.selectiveProx)
	if v, ok := values[EnvSingleTapProxPostures]; ok {
		c.singleTapProxPostures = parsePostures(v)
	}
	applyBool(values, EnvLongPressProx, &c.longPressProx)
	applyBool(values, EnvPulseOnSigMotion, &c.pulseOnSigMotion)
	applyBool(values, EnvDoubleTapReportsCoords, &c.doubleTapReportsCoords)
}

func applyBool(values map[string]string, key string, dst *bool) {
	if v, ok := values[key]; ok && v != "" {
		*dst = parseBool(v)
	}
}

func applyString(values map[string]string, key string, dst *string) {
	if v, ok := values[key]; ok {
		*dst = strings.TrimSpace(v)
	}
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	// Validate server address
	if c.addr == "" {
		return errors.New("server address cannot be empty")
	}

	// Check if address format is valid
	_, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		if _, err := strconv.Atoi(strings.TrimPrefix(c.addr, ":")); err != nil {
			return fmt.Errorf("invalid server address format: %s", c.addr)
		}
	} else {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 1 || portNum > 65535 {
			return fmt.Errorf("invalid port number: %s", port)
		}
	}

	// Validate JWT expiration
	if c.jwtExpiration < time.Minute {
		return errors.New("JWT expiration must be at least 1 minute")
	}
	if c.jwtExpiration > 365*24*time.Hour {
		return errors.New("JWT expiration cannot exceed 1 year")
	}

	if c.dbPath == "" {
		return errors.New("database path cannot be empty")
	}

	if c.wakeLockScreenDebounce > time.Minute {
		return errors.New("wake lock screen debounce cannot exceed 1 minute")
	}

	return nil
}

// Save writes current configuration to .env file.
func (c *Config) Save() error {
	c.mu.RLock()
	values := c.toMap()
	filePath := c.filePath
	c.mu.RUnlock()

	if err := godotenv.Write(values, filePath); err != nil {
		return err
	}
	// godotenv creates the file world readable; it holds the JWT secret
	if err := os.Chmod(filePath, 0600); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// toMap converts config to key-value map for saving.
func (c *Config) toMap() map[string]string {
	return map[string]string{
		EnvAddr:          c.addr,
		EnvJWTSecret:     c.jwtSecret,
		EnvJWTExpiration: strconv.Itoa(int(c.jwtExpiration.Seconds())),
		EnvNoAuth:        strconv.FormatBool(c.noAuth),
		EnvDBPath:        c.dbPath,
		EnvDeviceProfile: c.deviceProfile,
		// MQTT settings
		EnvMQTTBroker:   c.mqttBroker,
		EnvMQTTClientID: c.mqttClientID,
		EnvMQTTUsername: c.mqttUsername,
		EnvMQTTPassword: c.mqttPassword,
		EnvMQTTPrefix:   c.mqttPrefix,
		EnvMQTTUseTLS:   strconv.FormatBool(c.mqttUseTLS),
		// Ambient display settings
		EnvDozeEnabled:            strconv.FormatBool(c.dozeEnabled),
		EnvAlwaysOn:               strconv.FormatBool(c.alwaysOn),
		EnvTapSensorTypes:         strings.Join(c.tapSensorTypes, ","),
		EnvDoubleTapSensorType:    c.doubleTapSensorType,
		EnvLongPressSensorType:    c.longPressSensorType,
		EnvUdfpsLongPressType:     c.udfpsLongPressType,
		EnvQuickPickupSensorType:  c.quickPickupSensorType,
		EnvPickupAvailable:        strconv.FormatBool(c.pickupAvailable),
		EnvWakeGestureAvailable:   strconv.FormatBool(c.wakeGestureAvailable),
		EnvQuickPickupEnabled:     strconv.FormatBool(c.quickPickupEnabled),
		EnvScreenOffUdfps:         strconv.FormatBool(c.screenOffUdfps),
		EnvWakeLockScreenDebounce: strconv.FormatInt(c.wakeLockScreenDebounce.Milliseconds(), 10),
		EnvSelectiveProx:          strconv.FormatBool(c.selectiveProx),
		EnvSingleTapProxPostures:  formatPostures(c.singleTapProxPostures),
		EnvLongPressProx:          strconv.FormatBool(c.longPressProx),
		EnvPulseOnSigMotion:       strconv.FormatBool(c.pulseOnSigMotion),
		EnvDoubleTapReportsCoords: strconv.FormatBool(c.doubleTapReportsCoords),
	}
}

// Getters (thread-safe)

// Addr returns the server address.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// JWTSecret returns the JWT secret key.
func (c *Config) JWTSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtSecret
}

// JWTExpiration returns the JWT token expiration duration.
func (c *Config) JWTExpiration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtExpiration
}

// NoAuth returns whether authentication is disabled.
func (c *Config) NoAuth() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noAuth
}

// DBPath returns the settings database path.
func (c *Config) DBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dbPath
}

// DeviceProfile returns the path of the device sensor profile.
func (c *Config) DeviceProfile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceProfile
}

// FilePath returns the path to the .env file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// MQTT Getters

// MQTTBroker returns the MQTT broker address.
func (c *Config) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttBroker
}

// MQTTClientID returns the MQTT client ID.
func (c *Config) MQTTClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttClientID
}

// MQTTUsername returns the MQTT username.
func (c *Config) MQTTUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUsername
}

// MQTTPassword returns the MQTT password.
func (c *Config) MQTTPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPassword
}

// MQTTPrefix returns the MQTT topic prefix.
func (c *Config) MQTTPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPrefix
}

// MQTTUseTLS returns whether TLS is enabled for MQTT.
func (c *Config) MQTTUseTLS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUseTLS
}

// Setters (thread-safe, auto-save)

// SetAlwaysOn toggles always-on display and saves to file.
func (c *Config) SetAlwaysOn(on bool) error {
	c.mu.Lock()
	c.alwaysOn = on
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// Helper functions

// generateSecureSecret generates a cryptographically secure random hex string.
func generateSecureSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no (case-insensitive)
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// splitList splits a comma separated list, keeping empty entries so that
// positions stay meaningful
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parsePostures parses a comma separated posture list, skipping unknown names
func parsePostures(s string) []posture.Posture {
	var result []posture.Posture
	for _, name := range splitList(s) {
		if p, err := posture.Parse(name); err == nil {
			result = append(result, p)
		}
	}
	return result
}

func formatPostures(list []posture.Posture) string {
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

// Reload reloads configuration from file.
// Useful for hot-reloading configuration.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Save current JWT secret in case file doesn't have one
	currentSecret := c.jwtSecret

	// Reset to defaults
	c.setDefaults()

	// Load from file
	if err := c.loadFromFile(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	// Restore JWT secret if not in file
	if c.jwtSecret == "" {
		c.jwtSecret = currentSecret
	}

	return c.validate()
}

// String returns a string representation of the config (without secrets).
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	secretDisplay := "[not set]"
	if c.jwtSecret != "" {
		secretDisplay = "[set]"
	}

	return fmt.Sprintf(
		"Config{Addr: %q, JWTSecret: %s, JWTExpiration: %v, NoAuth: %v, DBPath: %q, MQTT: %q}",
		c.addr, secretDisplay, c.jwtExpiration, c.noAuth, c.dbPath, c.mqttBroker,
	)
}
