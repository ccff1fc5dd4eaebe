package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambientd/internal/doze"
	"ambientd/internal/sensors"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMessenger struct {
	cfg          Config
	published    []published
	raw          []published
	handlers     map[string]MessageHandler
	subscribes   int
	unsubscribes []string
	failPublish  bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		cfg:      Config{Prefix: "ambientd"},
		handlers: make(map[string]MessageHandler),
	}
}

func (m *fakeMessenger) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	if m.failPublish {
		return errors.New("not connected")
	}
	m.published = append(m.published, published{topic, qos, retained, payload.([]byte)})
	return nil
}

func (m *fakeMessenger) PublishRaw(topic string, payload interface{}, retained bool) error {
	m.raw = append(m.raw, published{topic, 1, retained, payload.([]byte)})
	return nil
}

func (m *fakeMessenger) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.subscribes++
	m.handlers[topic] = handler
	return nil
}

func (m *fakeMessenger) Unsubscribe(topic string) error {
	m.unsubscribes = append(m.unsubscribes, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *fakeMessenger) GetConfig() Config { return m.cfg }

type pluginRecorder struct {
	events []sensors.PluginEvent
}

func (r *pluginRecorder) OnPluginEvent(e sensors.PluginEvent) { r.events = append(r.events, e) }

func TestPluginTopic(t *testing.T) {
	assert.Equal(t, "plugin/wake_lock_screen/event", PluginTopic(sensors.PluginWakeLockScreen))
	assert.Equal(t, "plugin/wake_display/event", PluginTopic(sensors.PluginWakeDisplay))
}

func TestPluginTransportSubscribesOncePerType(t *testing.T) {
	m := newFakeMessenger()
	tr := NewPluginTransport(m, nil, nil)
	a, b := &pluginRecorder{}, &pluginRecorder{}

	tr.RegisterPluginListener(sensors.PluginWakeDisplay, a)
	tr.RegisterPluginListener(sensors.PluginWakeDisplay, b)
	tr.RegisterPluginListener(sensors.PluginWakeDisplay, a)
	assert.Equal(t, 1, m.subscribes)
	assert.Equal(t, 2, tr.ListenerCount(sensors.PluginWakeDisplay))

	tr.UnregisterPluginListener(sensors.PluginWakeDisplay, a)
	assert.Empty(t, m.unsubscribes)

	tr.UnregisterPluginListener(sensors.PluginWakeDisplay, b)
	assert.Equal(t, []string{"plugin/wake_display/event"}, m.unsubscribes)
	assert.Zero(t, tr.ListenerCount(sensors.PluginWakeDisplay))

	// unknown listener is ignored
	tr.UnregisterPluginListener(sensors.PluginWakeDisplay, b)
	assert.Len(t, m.unsubscribes, 1)
}

func TestPluginTransportDispatchesThroughQueue(t *testing.T) {
	m := newFakeMessenger()
	var queued []func()
	tr := NewPluginTransport(m, func(fn func()) { queued = append(queued, fn) }, nil)
	rec := &pluginRecorder{}
	tr.RegisterPluginListener(sensors.PluginWakeLockScreen, rec)

	handler := m.handlers[PluginTopic(sensors.PluginWakeLockScreen)]
	require.NotNil(t, handler)
	handler(PluginTopic(sensors.PluginWakeLockScreen), []byte(`{"values":[1,2.5]}`))

	assert.Empty(t, rec.events)
	require.Len(t, queued, 1)
	queued[0]()
	require.Len(t, rec.events, 1)
	assert.Equal(t, sensors.PluginWakeLockScreen, rec.events[0].Type)
	assert.Equal(t, []float64{1, 2.5}, rec.events[0].Values)
}

func TestPluginTransportDropsInvalidPayload(t *testing.T) {
	m := newFakeMessenger()
	tr := NewPluginTransport(m, nil, nil)
	rec := &pluginRecorder{}
	tr.RegisterPluginListener(sensors.PluginWakeDisplay, rec)

	m.handlers[PluginTopic(sensors.PluginWakeDisplay)]("", []byte(`{"values":`))
	assert.Empty(t, rec.events)
}

func TestDecodePluginValues(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []float64
		wantErr bool
	}{
		{name: "empty", payload: "", want: nil},
		{name: "whitespace", payload: "  \n", want: nil},
		{name: "array", payload: "[1, 2, 3]", want: []float64{1, 2, 3}},
		{name: "object", payload: `{"values": [0.5]}`, want: []float64{0.5}},
		{name: "object without values", payload: `{}`, want: nil},
		{name: "bad array", payload: "[1,", wantErr: true},
		{name: "not json", payload: "on", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePluginValues([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublishPulse(t *testing.T) {
	m := newFakeMessenger()
	p := NewPublisher(m, nil)

	pulse := NewPulse(doze.ReasonDoubleTap, 10, 20, []float64{10, 20})
	_, err := uuid.Parse(pulse.ID)
	require.NoError(t, err)
	require.NoError(t, p.PublishPulse(pulse))

	require.Len(t, m.published, 1)
	assert.Equal(t, TopicPulse, m.published[0].topic)
	assert.Equal(t, byte(1), m.published[0].qos)
	assert.False(t, m.published[0].retained)

	var got Pulse
	require.NoError(t, json.Unmarshal(m.published[0].payload, &got))
	assert.Equal(t, pulse.ID, got.ID)
	assert.Equal(t, "doubletap", got.ReasonName)
	assert.Equal(t, int(doze.ReasonDoubleTap), got.Reason)
	assert.Equal(t, 10.0, got.ScreenX)
}

func TestPulseIDsAreUnique(t *testing.T) {
	a := NewPulse(doze.ReasonTap, -1, -1, nil)
	b := NewPulse(doze.ReasonTap, -1, -1, nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPublishPulseError(t *testing.T) {
	m := newFakeMessenger()
	m.failPublish = true
	p := NewPublisher(m, nil)

	assert.Error(t, p.PublishPulse(NewPulse(doze.ReasonTap, -1, -1, nil)))
}

func TestPublishStatusRetained(t *testing.T) {
	m := newFakeMessenger()
	p := NewPublisher(m, nil)

	require.NoError(t, p.PublishStatus(doze.Status{Listening: true}))
	require.Len(t, m.published, 1)
	assert.Equal(t, TopicStatus, m.published[0].topic)
	assert.True(t, m.published[0].retained)
	assert.Contains(t, string(m.published[0].payload), `"listening":true`)
}

type memFlags map[string]int

func (f memFlags) GetIntForUser(key string, def int, userID int) int {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

func (f memFlags) PutIntForUser(key string, value int, userID int) error {
	f[key] = value
	return nil
}

func TestDiscoveryPublishAll(t *testing.T) {
	m := newFakeMessenger()
	flags := memFlags{}
	device := &DeviceInfo{Identifiers: []string{"ambientd_test"}, Name: "Test device"}
	d := NewDiscoveryManager(m, nil, flags, device)

	require.True(t, d.ShouldPublishDiscovery())
	require.NoError(t, d.PublishAll())
	assert.False(t, d.ShouldPublishDiscovery())

	require.Len(t, m.raw, len(d.Entities()))
	assert.Equal(t, "homeassistant/sensor/ambientd/last_pulse/config", m.raw[0].topic)
	assert.True(t, m.raw[0].retained)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(m.raw[0].payload, &cfg))
	assert.Equal(t, "ambientd/pulse", cfg["state_topic"])
	assert.Equal(t, "ambientd_last_pulse", cfg["unique_id"])
	assert.NotNil(t, cfg["device"])

	require.NoError(t, json.Unmarshal(m.raw[1].payload, &cfg))
	assert.Equal(t, "ON", cfg["payload_on"])
}

func TestClientTopics(t *testing.T) {
	c, err := New(Config{Broker: "tcp://localhost:1883", Prefix: "ambientd"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "ambientd/pulse", c.buildTopic("pulse"))
	assert.Equal(t, "plugin/swipe/event", c.stripTopic("ambientd/plugin/swipe/event"))
	assert.Contains(t, c.GetConfig().ClientID, "ambientd-")
	assert.False(t, c.IsConnected())
	assert.Error(t, c.Publish("pulse", []byte("{}")))

	// recorded while disconnected and restored on connect
	require.NoError(t, c.Subscribe("plugin/swipe/event", 1, func(string, []byte) {}))
	assert.Len(t, c.subs, 1)
	require.NoError(t, c.Unsubscribe("plugin/swipe/event"))
	assert.Empty(t, c.subs)
}

func TestNewRequiresBroker(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}
