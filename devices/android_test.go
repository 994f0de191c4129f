package devices

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mobile-next/mobilesync/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdb answers adb invocations by matching the joined argument string
type fakeAdb struct {
	calls   []string
	outputs map[string]string
	errs    map[string]error
}

func newFakeAdb() *fakeAdb {
	return &fakeAdb{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeAdb) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	joined := strings.Join(args, " ")
	f.calls = append(f.calls, joined)
	for suffix, err := range f.errs {
		if strings.HasSuffix(joined, suffix) {
			return []byte(f.outputs[suffix]), err
		}
	}
	for suffix, out := range f.outputs {
		if strings.HasSuffix(joined, suffix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func newTestDevice(f *fakeAdb) *AndroidDevice {
	return &AndroidDevice{id: "R5CR1234567", adbPath: "adb", run: f.run}
}

func TestEscapeShellText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"simple text", "hello", "hello"},
		{"text with spaces", "hello world", "hello\\ world"},
		{"single quote", "it's", "it\\'s"},
		{"semicolons", "a;b", "a\\;b"},
		{"pipes", "a|b", "a\\|b"},
		{"dollar sign", "$HOME", "\\$HOME"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeShellText(tt.text))
		})
	}
}

func TestAndroidDevice_DeviceType(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"emulator-5554", "emulator"},
		{"R5CR1234567", "real"},
		{"192.168.1.20:5555", "real"},
	}

	for _, tt := range tests {
		d := &AndroidDevice{id: tt.id}
		assert.Equal(t, tt.want, d.DeviceType(), "DeviceType() for %s", tt.id)
	}
}

func TestParseAdbDevicesOutput(t *testing.T) {
	output := "* daemon started successfully\nList of devices attached\nR5CR1234567\tdevice\nemulator-5554\tdevice\nZY22\tunauthorized\n192.168.1.20:5555\toffline\n\n"

	got := parseAdbDevicesOutput(output)

	require.Len(t, got, 2)
	assert.Equal(t, "R5CR1234567", got[0].ID)
	assert.Equal(t, "emulator-5554", got[1].ID)
	assert.Equal(t, "online", got[0].State)
}

func TestParseWmSize(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    types.Size
		wantErr bool
	}{
		{"physical only", "Physical size: 1080x2400\n", types.Size{Width: 1080, Height: 2400}, false},
		{"override wins", "Physical size: 1440x3200\nOverride size: 1080x2400\n", types.Size{Width: 1080, Height: 2400}, false},
		{"garbage", "no size here", types.Size{}, true},
		{"zero size", "Physical size: 0x2400", types.Size{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWmSize(tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrGeometryUnknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrientation(t *testing.T) {
	o, ok := parseSurfaceOrientation("    Viewport INTERNAL: displayId=0\n      SurfaceOrientation: 1\n")
	require.True(t, ok)
	assert.Equal(t, types.Landscape, o)

	o, ok = parseSurfaceOrientation("SurfaceOrientation: 0")
	require.True(t, ok)
	assert.Equal(t, types.Portrait, o)

	_, ok = parseSurfaceOrientation("nothing")
	assert.False(t, ok)

	o, ok = parseCurrentRotation("  mCurrentRotation=ROTATION_270 mLastOrientation=0")
	require.True(t, ok)
	assert.Equal(t, types.Landscape, o)
}

func TestEffectiveGeometry(t *testing.T) {
	natural := types.Size{Width: 1080, Height: 2400}

	g := effectiveGeometry(natural, types.Landscape)
	assert.Equal(t, types.Size{Width: 2400, Height: 1080}, g.Size)

	g = effectiveGeometry(natural, types.Portrait)
	assert.Equal(t, natural, g.Size)

	// tablets whose natural orientation is landscape
	g = effectiveGeometry(types.Size{Width: 2560, Height: 1600}, types.Landscape)
	assert.Equal(t, types.Size{Width: 2560, Height: 1600}, g.Size)
}

func TestAndroidDevice_PerformBuildsInputCommands(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{"tap", Action{Kind: ActionTap, X: 10, Y: 20}, "-s R5CR1234567 shell input tap 10 20"},
		{"long press", Action{Kind: ActionLongPress, X: 5, Y: 6, DurationMs: 900}, "-s R5CR1234567 shell input swipe 5 6 5 6 900"},
		{"swipe", Action{Kind: ActionSwipe, X: 1, Y: 2, X2: 3, Y2: 4, DurationMs: 300}, "-s R5CR1234567 shell input swipe 1 2 3 4 300"},
		{"named key", Action{Kind: ActionKey, Key: "HOME"}, "-s R5CR1234567 shell input keyevent 3"},
		{"numeric key", Action{Kind: ActionKey, Key: "82"}, "-s R5CR1234567 shell input keyevent 82"},
		{"text", Action{Kind: ActionText, Text: "hi there"}, "-s R5CR1234567 shell input text hi\\ there"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAdb()
			_, err := newTestDevice(f).Perform(context.Background(), tt.action)
			require.NoError(t, err)
			require.Len(t, f.calls, 1)
			assert.Equal(t, tt.want, f.calls[0])
		})
	}
}

func TestAndroidDevice_UnsupportedKey(t *testing.T) {
	f := newFakeAdb()
	_, err := newTestDevice(f).Perform(context.Background(), Action{Kind: ActionKey, Key: "hyper"})
	assert.ErrorIs(t, err, types.ErrCommandFailure)
	assert.Empty(t, f.calls)
}

func TestAndroidDevice_FailureMarkerInOutput(t *testing.T) {
	f := newFakeAdb()
	f.outputs["tap 1 1"] = "Error: Injecting to another application requires INJECT_EVENTS permission"

	err := newTestDevice(f).Tap(context.Background(), 1, 1)
	assert.ErrorIs(t, err, types.ErrCommandFailure)
}

func TestAndroidDevice_NonZeroExit(t *testing.T) {
	f := newFakeAdb()
	f.errs["tap 1 1"] = errors.New("exit status 1")

	err := newTestDevice(f).Tap(context.Background(), 1, 1)
	assert.ErrorIs(t, err, types.ErrCommandFailure)
}

func TestAndroidDevice_Timeout(t *testing.T) {
	d := &AndroidDevice{id: "slow", adbPath: "adb", run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Tap(ctx, 1, 1)
	assert.ErrorIs(t, err, types.ErrCommandTimeout)
}

func TestAndroidDevice_Geometry(t *testing.T) {
	f := newFakeAdb()
	f.outputs["wm size"] = "Physical size: 1080x2400"
	f.outputs["dumpsys input"] = "SurfaceOrientation: 3"

	g, err := newTestDevice(f).Geometry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Geometry{Size: types.Size{Width: 2400, Height: 1080}, Orientation: types.Landscape}, g)
}

func TestAndroidDevice_OrientationFallsBackToWindowDump(t *testing.T) {
	f := newFakeAdb()
	f.outputs["dumpsys input"] = "no orientation here"
	f.outputs["dumpsys window displays"] = "mCurrentRotation=ROTATION_0"

	o, err := newTestDevice(f).Orientation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Portrait, o)
}
