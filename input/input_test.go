package input

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for source to close")
		}
	}
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"pointer down", Event{Type: PointerDown, X: 1, Y: 2}, false},
		{"key with code", Event{Type: KeyDown, Key: "home"}, false},
		{"key with text", Event{Type: KeyDown, Text: "a"}, false},
		{"empty key", Event{Type: KeyDown}, true},
		{"missing type", Event{}, true},
		{"unknown type", Event{Type: "scroll"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvent_Time(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now, Event{}.Time(now))
	assert.Equal(t, int64(1700000000123), Event{Timestamp: 1700000000123}.Time(now).UnixMilli())
}

func TestJSONLinesSource_ReadsValidLines(t *testing.T) {
	lines := strings.Join([]string{
		`{"type":"pointer_down","x":540,"y":1200,"surface":"emulator-5554","ts":1000}`,
		``,
		`not json`,
		`{"type":"key_down"}`,
		`{"type":"pointer_up","x":540,"y":1200,"ts":1100}`,
		`{"type":"key_down","key":"back"}`,
	}, "\n")

	src := NewJSONLinesSource(strings.NewReader(lines))
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	got := collect(t, src.Events())

	require.Len(t, got, 3)
	assert.Equal(t, PointerDown, got[0].Type)
	assert.Equal(t, "emulator-5554", got[0].Surface)
	assert.Equal(t, PointerUp, got[1].Type)
	assert.Equal(t, "back", got[2].Key)
	assert.NoError(t, src.Err())
}

func TestJSONLinesSource_StartTwice(t *testing.T) {
	src := NewJSONLinesSource(strings.NewReader(""))
	require.NoError(t, src.Start(context.Background()))
	assert.Error(t, src.Start(context.Background()))
}

func TestPushSource(t *testing.T) {
	src := NewPushSource(1)

	require.NoError(t, src.Push(Event{Type: PointerDown}))
	assert.Error(t, src.Push(Event{Type: PointerUp}), "buffer of one should be full")
	assert.Error(t, src.Push(Event{}), "invalid events are rejected")

	require.NoError(t, src.Stop())
	assert.Error(t, src.Push(Event{Type: PointerDown}))

	got := collect(t, src.Events())
	assert.Len(t, got, 1)
}
