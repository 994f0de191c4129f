// Package bridge binds one primary device to an ordered set of secondaries
// and caches the screen geometry of each of them.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mobile-next/mobilesync/devices"
	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
)

// initial cache size, Bind resizes it to the bound device set
const geometryCacheSize = 16

// Channel is the part of the device command channel the bridge needs
type Channel interface {
	ListDevices(ctx context.Context) ([]devices.DeviceInfo, error)
	Geometry(ctx context.Context, deviceID string) (types.Geometry, error)
}

// SizeRatio compares a secondary surface to the primary one, for diagnostics
type SizeRatio struct {
	DeviceID            string  `json:"deviceId"`
	WidthRatio          float64 `json:"widthRatio"`
	HeightRatio         float64 `json:"heightRatio"`
	OrientationMismatch bool    `json:"orientationMismatch"`
}

// Bridge holds the bound device set. Geometry entries stay cached until the
// next Bind or Rebuild.
type Bridge struct {
	mu           sync.RWMutex
	channel      Channel
	queryTimeout time.Duration
	cache        *lru.Cache[string, types.Geometry]

	primary     string
	secondaries []string
	ratios      map[string]SizeRatio
}

func New(channel Channel, queryTimeout time.Duration) *Bridge {
	// only fails for a non-positive size
	cache, _ := lru.New[string, types.Geometry](geometryCacheSize)
	return &Bridge{
		channel:      channel,
		queryTimeout: queryTimeout,
		cache:        cache,
		ratios:       make(map[string]SizeRatio),
	}
}

// Bind associates primary with the given secondaries. It fails without any
// state change when a listed device is not currently reachable. Duplicate
// secondaries and the primary itself are dropped from the secondary list.
// Devices whose geometry cannot be read are bound anyway and queried again on
// first use.
func (b *Bridge) Bind(ctx context.Context, primary string, secondaries []string) error {
	if primary == "" {
		return fmt.Errorf("primary device ID is required")
	}

	listCtx, cancel := b.withQueryTimeout(ctx)
	live, err := b.channel.ListDevices(listCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	reachable := make(map[string]bool, len(live))
	for _, d := range live {
		reachable[d.ID] = true
	}

	if !reachable[primary] {
		return fmt.Errorf("%w: %s", types.ErrDeviceUnavailable, primary)
	}
	for _, id := range secondaries {
		if !reachable[id] {
			return fmt.Errorf("%w: %s", types.ErrDeviceUnavailable, id)
		}
	}

	ordered := dedupe(primary, secondaries)

	b.mu.Lock()
	b.cache.Purge()
	// every bound device fits, entries only leave on the next bind
	b.cache.Resize(len(ordered) + 1)
	b.primary = primary
	b.secondaries = ordered
	b.ratios = make(map[string]SizeRatio)
	b.mu.Unlock()

	for _, id := range append([]string{primary}, ordered...) {
		if _, err := b.readGeometry(ctx, id); err != nil {
			utils.Warn("geometry of %s unavailable, will retry on use: %v", id, err)
		}
	}

	b.refreshRatios()

	utils.Logger().WithField("primary", primary).Infof("bridge bound to %d secondary device(s)", len(ordered))
	return nil
}

func dedupe(primary string, secondaries []string) []string {
	seen := map[string]bool{primary: true}
	ordered := make([]string, 0, len(secondaries))
	for _, id := range secondaries {
		if seen[id] {
			utils.Verbose("ignoring duplicate device %s in secondary list", id)
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	return ordered
}

func (b *Bridge) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.queryTimeout > 0 {
		return context.WithTimeout(ctx, b.queryTimeout)
	}
	return ctx, func() {}
}

func (b *Bridge) readGeometry(ctx context.Context, deviceID string) (types.Geometry, error) {
	queryCtx, cancel := b.withQueryTimeout(ctx)
	defer cancel()

	geometry, err := b.channel.Geometry(queryCtx, deviceID)
	if err != nil {
		return types.Geometry{}, err
	}
	if !geometry.Valid() {
		return types.Geometry{}, fmt.Errorf("invalid screen size %dx%d", geometry.Width, geometry.Height)
	}

	b.cache.Add(deviceID, geometry)
	return geometry, nil
}

// Geometry returns the cached geometry of a bound device, probing it again if
// an earlier attempt failed.
func (b *Bridge) Geometry(ctx context.Context, deviceID string) (types.Geometry, error) {
	if geometry, ok := b.cache.Get(deviceID); ok {
		return geometry, nil
	}

	geometry, err := b.readGeometry(ctx, deviceID)
	if err != nil {
		return types.Geometry{}, fmt.Errorf("%w: %s: %v", types.ErrGeometryUnknown, deviceID, err)
	}

	b.refreshRatios()
	return geometry, nil
}

func (b *Bridge) refreshRatios() {
	b.mu.Lock()
	defer b.mu.Unlock()

	primary, ok := b.cache.Peek(b.primary)
	if !ok {
		return
	}

	for _, id := range b.secondaries {
		geometry, ok := b.cache.Peek(id)
		if !ok {
			continue
		}
		b.ratios[id] = SizeRatio{
			DeviceID:            id,
			WidthRatio:          float64(geometry.Width) / float64(primary.Width),
			HeightRatio:         float64(geometry.Height) / float64(primary.Height),
			OrientationMismatch: geometry.Orientation != primary.Orientation,
		}
	}
}

// Rebuild drops every cached geometry and binds the same device set again
func (b *Bridge) Rebuild(ctx context.Context) error {
	b.mu.RLock()
	primary := b.primary
	secondaries := append([]string(nil), b.secondaries...)
	b.mu.RUnlock()

	if primary == "" {
		return fmt.Errorf("no bridge to rebuild")
	}

	return b.Bind(ctx, primary, secondaries)
}

// Teardown forgets the bound devices and their geometry
func (b *Bridge) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Purge()
	b.primary = ""
	b.secondaries = nil
	b.ratios = make(map[string]SizeRatio)
}

func (b *Bridge) Bound() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.primary != ""
}

func (b *Bridge) Primary() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.primary
}

// Secondaries returns the bound secondaries in dispatch order
func (b *Bridge) Secondaries() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.secondaries...)
}

// SizeRatios returns the ratio records in dispatch order. Devices without a
// known geometry are left out.
func (b *Bridge) SizeRatios() []SizeRatio {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]SizeRatio, 0, len(b.ratios))
	for _, id := range b.secondaries {
		if r, ok := b.ratios[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
