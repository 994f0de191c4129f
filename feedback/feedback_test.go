package feedback

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastAndUnsubscribe(t *testing.T) {
	hub := NewHub()

	a, cancelA := hub.Subscribe(4)
	b, cancelB := hub.Subscribe(4)
	require.Equal(t, 2, hub.Subscribers())

	hub.Emit(Messagef(KindSync, "sync tap (%d,%d) → %d devices…", 540, 1200, 2))

	evA := <-a
	evB := <-b
	assert.Equal(t, "sync tap (540,1200) → 2 devices…", evA.Message)
	assert.Equal(t, evA, evB)

	cancelA()
	cancelA() // idempotent
	assert.Equal(t, 1, hub.Subscribers())
	_, open := <-a
	assert.False(t, open)

	cancelB()
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Emit(Messagef(KindInfo, "first"))
	hub.Emit(Messagef(KindInfo, "second"))

	assert.Equal(t, "first", (<-ch).Message)
	assert.Len(t, ch, 0)
}

func TestLogSink_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	sink := NewLogSink(logger)
	ev := Messagef(KindTimeout, "device %s timed out", "emulator-5554")
	ev.DeviceID = "emulator-5554"
	sink.Emit(ev)

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "device=emulator-5554")
	assert.Contains(t, out, "device emulator-5554 timed out")
}

func TestMulti(t *testing.T) {
	var got []string
	collect := SinkFunc(func(ev Event) { got = append(got, ev.Message) })

	Multi{collect, Discard, collect}.Emit(Messagef(KindStats, "success rate 100%% (1/1)"))

	assert.Equal(t, []string{"success rate 100% (1/1)", "success rate 100% (1/1)"}, got)
}
