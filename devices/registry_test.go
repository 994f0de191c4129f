package devices

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mobile-next/mobilesync/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*DeviceRegistry, *fakeAdb) {
	f := newFakeAdb()
	f.outputs["devices"] = "List of devices attached\nemulator-5554\tdevice\nR5CR1234567\tdevice\n"
	f.outputs["-s R5CR1234567 shell getprop ro.product.model"] = "SM-G991B\n"
	return NewDeviceRegistryWithRunner("adb", f.run), f
}

func TestDeviceRegistry_ListDevices(t *testing.T) {
	r, _ := newTestRegistry()

	infos, err := r.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "R5CR1234567", infos[0].ID)
	assert.Equal(t, "SM-G991B", infos[0].Name)
	assert.Equal(t, "real", infos[0].Type)
	// empty getprop output falls back to the id
	assert.Equal(t, "emulator-5554", infos[1].Name)
	assert.Equal(t, "emulator", infos[1].Type)
}

func TestDeviceRegistry_NamesAreLookedUpOnce(t *testing.T) {
	r, f := newTestRegistry()

	_, err := r.ListDevices(context.Background())
	require.NoError(t, err)
	_, err = r.ListDevices(context.Background())
	require.NoError(t, err)

	lookups := 0
	for _, call := range f.calls {
		if call == "-s R5CR1234567 shell getprop ro.product.model" {
			lookups++
		}
	}
	assert.Equal(t, 1, lookups)
}

func TestDeviceRegistry_FindUnknownDevice(t *testing.T) {
	r, _ := newTestRegistry()

	_, err := r.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrDeviceUnavailable)

	_, err = r.Find(context.Background(), "")
	assert.Error(t, err)
}

func TestDeviceRegistry_SendAction(t *testing.T) {
	r, f := newTestRegistry()

	out, err := r.SendAction(context.Background(), "emulator-5554", Action{Kind: ActionTap, X: 100, Y: 200})
	require.NoError(t, err)
	assert.Contains(t, out, "emulator-5554")
	assert.Equal(t, "-s emulator-5554 shell input tap 100 200", f.calls[len(f.calls)-1])
}

func TestDeviceRegistry_Info(t *testing.T) {
	r, f := newTestRegistry()
	f.outputs["-s R5CR1234567 shell wm size"] = "Physical size: 1080x2400"
	f.outputs["-s R5CR1234567 shell dumpsys input"] = "SurfaceOrientation: 0"

	info, err := r.Info(context.Background(), "R5CR1234567")
	require.NoError(t, err)
	require.NotNil(t, info.ScreenSize)
	assert.Equal(t, 1080, info.ScreenSize.Width)
	assert.Equal(t, types.Portrait, info.Orientation)
}

func TestDeviceRegistry_SlowNameLookupDoesNotBlockFind(t *testing.T) {
	var mu sync.Mutex
	listing := "List of devices attached\nfast\tdevice\n"
	lookupStarted := make(chan struct{})
	release := make(chan struct{})

	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		joined := strings.Join(args, " ")
		switch {
		case joined == "devices":
			mu.Lock()
			defer mu.Unlock()
			return []byte(listing), nil
		case joined == "-s slow shell getprop ro.product.model":
			close(lookupStarted)
			<-release
			return []byte("Pixel 8\n"), nil
		}
		return nil, nil
	}

	r := NewDeviceRegistryWithRunner("adb", run)
	_, err := r.ListDevices(context.Background())
	require.NoError(t, err)

	mu.Lock()
	listing += "slow\tdevice\n"
	mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := r.ListDevices(context.Background())
		done <- err
	}()
	<-lookupStarted

	found := make(chan error, 1)
	go func() {
		_, err := r.Find(context.Background(), "fast")
		found <- err
	}()

	select {
	case err := <-found:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Find waited for the name lookup of another device")
	}

	close(release)
	require.NoError(t, <-done)

	device, err := r.Find(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "Pixel 8", device.Name())
}
