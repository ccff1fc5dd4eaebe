package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambientd/internal/doze"
	"ambientd/internal/posture"
)

var (
	_ doze.AmbientConfig = (*Config)(nil)
	_ doze.Parameters    = (*Config)(nil)
)

func TestLoadCreatesFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr())
	assert.Len(t, cfg.JWTSecret(), 64)
	assert.Equal(t, DefaultWakeLockScreenDebounce, cfg.WakeLockScreenDebounce())
	assert.True(t, cfg.Enabled(0))
	assert.False(t, cfg.AlwaysOnEnabled(0))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.JWTSecret(), values[EnvJWTSecret])
	assert.Equal(t, "5000", values[EnvWakeLockScreenDebounce])
}

func TestLoadKeepsSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	first, err := Load(path)
	require.NoError(t, err)
	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.JWTSecret(), second.JWTSecret())
}

func writeEnv(t *testing.T, values map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, godotenv.Write(values, path))
	return path
}

func TestLoadAmbientSettings(t *testing.T) {
	path := writeEnv(t, map[string]string{
		EnvJWTSecret:              "secret",
		EnvDozeEnabled:            "false",
		EnvAlwaysOn:               "yes",
		EnvTapSensorTypes:         ", test.tap, test.tap_open ,test.tap_open",
		EnvDoubleTapSensorType:    "test.double_tap",
		EnvQuickPickupSensorType:  "test.quick_pickup",
		EnvQuickPickupEnabled:     "1",
		EnvWakeLockScreenDebounce: "2500",
		EnvSelectiveProx:          "on",
		EnvSingleTapProxPostures:  "closed, half-opened, bogus",
		EnvPulseOnSigMotion:       "true",
		EnvDoubleTapReportsCoords: "true",
		EnvWakeGestureAvailable:   "true",
		EnvMQTTBroker:             "tcp://broker:1883",
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.JWTSecret())
	assert.True(t, cfg.Enabled(0), "always-on keeps ambient display enabled")
	assert.True(t, cfg.AlwaysOnEnabled(0))
	assert.Equal(t, []string{"", "test.tap", "test.tap_open", "test.tap_open"}, cfg.TapSensorTypeMapping())
	assert.Equal(t, "test.double_tap", cfg.DoubleTapSensorType())
	assert.True(t, cfg.QuickPickupSensorEnabled(0))
	assert.Equal(t, 2500*time.Millisecond, cfg.WakeLockScreenDebounce())
	assert.True(t, cfg.SelectivelyRegisterSensorsUsingProx())
	assert.True(t, cfg.SingleTapUsesProx(posture.Closed))
	assert.True(t, cfg.SingleTapUsesProx(posture.HalfOpened))
	assert.False(t, cfg.SingleTapUsesProx(posture.Opened))
	assert.True(t, cfg.PulseOnSigMotion())
	assert.True(t, cfg.DoubleTapReportsTouchCoordinates())
	assert.True(t, cfg.WakeScreenGestureAvailable())
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker())
	assert.Equal(t, DefaultMQTTPrefix, cfg.MQTTPrefix())
}

func TestQuickPickupNeedsSensorType(t *testing.T) {
	path := writeEnv(t, map[string]string{
		EnvJWTSecret:          "secret",
		EnvQuickPickupEnabled: "true",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.QuickPickupSensorEnabled(0))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"bad address", map[string]string{EnvAddr: "not an address"}},
		{"bad port", map[string]string{EnvAddr: "localhost:99999"}},
		{"short expiration", map[string]string{EnvJWTExpiration: "10"}},
		{"long debounce", map[string]string{EnvWakeLockScreenDebounce: "120000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.values[EnvJWTSecret] = "secret"
			_, err := Load(writeEnv(t, tt.values))
			assert.Error(t, err)
		})
	}
}

func TestSetAlwaysOnSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SetAlwaysOn(true))
	assert.True(t, cfg.Enabled(0))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, reloaded.AlwaysOnEnabled(0))
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	cfg, err := Load(path)
	require.NoError(t, err)
	secret := cfg.JWTSecret()

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	values[EnvPulseOnSigMotion] = "true"
	require.NoError(t, godotenv.Write(values, path))

	require.NoError(t, cfg.Reload())
	assert.True(t, cfg.PulseOnSigMotion())
	assert.Equal(t, secret, cfg.JWTSecret())
}

func TestStringHidesSecret(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	assert.NotContains(t, cfg.String(), cfg.JWTSecret())
	assert.Contains(t, cfg.String(), "[set]")
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", " on "} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"false", "0", "no", "", "maybe"} {
		assert.False(t, parseBool(s), s)
	}
}
