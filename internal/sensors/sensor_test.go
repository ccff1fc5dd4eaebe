package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTrigger struct {
	events []Event
}

func (r *recordingTrigger) OnTrigger(event Event) {
	r.events = append(r.events, event)
}

type recordingListener struct {
	events []Event
}

func (r *recordingListener) OnSensorChanged(event Event) {
	r.events = append(r.events, event)
}

func TestFindSensor(t *testing.T) {
	prox := &Sensor{Type: TypeProximity, StringType: StringTypeProximity, Name: "prox-0"}
	light := &Sensor{Type: TypeLight, StringType: StringTypeLight, Name: "light-0"}
	catalog := NewCatalog(light, prox)

	assert.Same(t, prox, FindSensor(catalog, StringTypeProximity, "prox-0"))
	assert.Nil(t, FindSensor(catalog, StringTypeProximity, "some other name"))
	assert.Same(t, prox, FindSensor(catalog, StringTypeProximity, ""))
	assert.Same(t, light, FindSensor(catalog, "", "light-0"))
	assert.Nil(t, FindSensor(catalog, "", ""))
}

func TestFindSensor_EmptyCatalog(t *testing.T) {
	assert.Nil(t, FindSensor(NewCatalog(), StringTypeProximity, ""))
}

func TestFindSensors_SharesHandles(t *testing.T) {
	closed := &Sensor{StringType: "tap.closed", Name: "tap-closed"}
	opened := &Sensor{StringType: "tap.opened", Name: "tap-opened"}
	catalog := NewCatalog(closed, opened)

	table := FindSensors(catalog, []string{"", "tap.closed", "tap.opened", "tap.opened", "missing"})

	require.Len(t, table, 5)
	assert.Nil(t, table[0])
	assert.Same(t, closed, table[1])
	assert.Same(t, opened, table[2])
	assert.Same(t, table[2], table[3])
	assert.Nil(t, table[4])
}

func TestCatalog_TriggerIsOneShot(t *testing.T) {
	s := &Sensor{Type: TypePickUpGesture, StringType: StringTypePickUpGesture, Name: "pickup"}
	catalog := NewCatalog(s)
	l := &recordingTrigger{}

	require.True(t, catalog.RequestTriggerSensor(l, s))
	require.True(t, catalog.RequestTriggerSensor(l, s), "re-request of a live registration succeeds")
	assert.Equal(t, 1, catalog.TriggerCount(s))

	assert.Equal(t, 1, catalog.Dispatch(s, 1, 2))
	require.Len(t, l.events, 1)
	assert.Equal(t, []float64{1, 2}, l.events[0].Values)
	assert.Equal(t, 0, catalog.TriggerCount(s))

	assert.Equal(t, 0, catalog.Dispatch(s))
	assert.Len(t, l.events, 1)
}

func TestCatalog_RejectsUnknownAndUnavailable(t *testing.T) {
	s := &Sensor{Name: "tap"}
	catalog := NewCatalog(s)
	l := &recordingTrigger{}

	assert.False(t, catalog.RequestTriggerSensor(l, nil))
	assert.False(t, catalog.RequestTriggerSensor(l, &Sensor{Name: "tap"}))

	catalog.SetAvailable(s, false)
	assert.False(t, catalog.Available(s))
	assert.False(t, catalog.RequestTriggerSensor(l, s))
	catalog.SetAvailable(s, true)
	assert.True(t, catalog.Available(s))
	assert.True(t, catalog.RequestTriggerSensor(l, s))
	assert.False(t, catalog.Available(&Sensor{Name: "tap"}))

	assert.True(t, catalog.CancelTriggerSensor(l, s))
	assert.False(t, catalog.CancelTriggerSensor(l, s))
}

func TestCatalog_ContinuousListener(t *testing.T) {
	s := &Sensor{Type: TypeProximity, StringType: StringTypeProximity, Name: "prox", MaxRange: 5}
	catalog := NewCatalog(s)
	l := &recordingListener{}

	require.True(t, catalog.RegisterListener(l, s))
	catalog.Dispatch(s, 0)
	catalog.Dispatch(s, 5)
	assert.Len(t, l.events, 2)

	catalog.UnregisterListener(l, s)
	catalog.Dispatch(s, 0)
	assert.Len(t, l.events, 2)
}

func TestParseProfile(t *testing.T) {
	data := []byte(`
device: foldable
sensors:
  - name: tap-closed
    type: 65537
    string_type: tap.closed
    wake_up: true
  - name: prox
    type: 8
    string_type: sensor.proximity
    max_range: 5
  - name: broken
    string_type: tap.broken
    unavailable: true
`)
	catalog, err := ParseProfile(data)
	require.NoError(t, err)
	assert.Equal(t, "foldable", catalog.Device)

	all := catalog.SensorList(TypeAll)
	require.Len(t, all, 3)
	assert.Equal(t, "tap-closed", all[0].Name)
	assert.True(t, all[0].WakeUp)
	assert.Same(t, all[1], catalog.DefaultSensor(TypeProximity))
	assert.Equal(t, 5.0, all[1].MaxRange)

	broken := catalog.ByName("broken")
	require.NotNil(t, broken)
	assert.False(t, catalog.RequestTriggerSensor(&recordingTrigger{}, broken))
}

func TestParseProfile_Invalid(t *testing.T) {
	_, err := ParseProfile([]byte("sensors:\n  - vendor: acme\n"))
	assert.Error(t, err)

	_, err = ParseProfile([]byte("sensors: [unterminated"))
	assert.Error(t, err)
}
