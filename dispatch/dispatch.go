// Package dispatch replays an admitted gesture on every secondary device, one
// device at a time, in the bridge's order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mobile-next/mobilesync/config"
	"github.com/mobile-next/mobilesync/devices"
	"github.com/mobile-next/mobilesync/feedback"
	"github.com/mobile-next/mobilesync/geometry"
	"github.com/mobile-next/mobilesync/gesture"
	"github.com/mobile-next/mobilesync/session"
	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultLongPressMs = 1000
	defaultSwipeMs     = 300
	minSwipeMs         = 100
)

// CommandChannel executes one action on one device. The context carries the
// per-call timeout.
type CommandChannel interface {
	SendAction(ctx context.Context, deviceID string, action devices.Action) (string, error)
}

// Topology is the bound device set with its geometry
type Topology interface {
	Primary() string
	Secondaries() []string
	Geometry(ctx context.Context, deviceID string) (types.Geometry, error)
}

// Tracker is the session bookkeeping a cycle reports into
type Tracker interface {
	SetOutstanding(cycleID, deviceID string)
	Record(cycleID, deviceID string, ok bool) bool
	Finish(cycleID string)
	Statistics() session.Statistics
}

// Result is the outcome of one device for one gesture
type Result struct {
	DeviceID string `json:"deviceId"`
	Success  bool   `json:"success"`
	Retried  bool   `json:"retried"`
	Message  string `json:"message"`
}

// Report aggregates a cycle. Success is true only when no device failed.
type Report struct {
	CycleID       string             `json:"cycleId"`
	Gesture       gesture.Gesture    `json:"gesture"`
	Results       []Result           `json:"results"`
	FailedDevices []string           `json:"failedDevices"`
	Success       bool               `json:"success"`
	Statistics    session.Statistics `json:"statistics"`
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Dispatcher struct {
	channel  CommandChannel
	topology Topology
	tracker  Tracker
	mapper   *geometry.Mapper
	sink     feedback.Sink
	cfg      config.DispatchConfig
	sleep    SleepFunc
}

type Option func(*Dispatcher)

func WithSink(sink feedback.Sink) Option {
	return func(d *Dispatcher) {
		d.sink = sink
	}
}

// WithSleep replaces the pause between devices and before retries
func WithSleep(fn SleepFunc) Option {
	return func(d *Dispatcher) {
		d.sleep = fn
	}
}

func New(channel CommandChannel, topology Topology, tracker Tracker, mapper *geometry.Mapper, cfg config.DispatchConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channel:  channel,
		topology: topology,
		tracker:  tracker,
		mapper:   mapper,
		sink:     feedback.Discard,
		cfg:      cfg,
		sleep:    sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch replicates the cycle's gesture on every secondary and releases the
// cycle when done. Cancelling ctx does not stop a cycle midway. Per-device failures are reported in the Report, never as
// an error; the only error is ErrNothingToSync.
func (d *Dispatcher) Dispatch(ctx context.Context, cycle *session.Cycle) (*Report, error) {
	defer d.tracker.Finish(cycle.ID)

	// a cycle is bounded by the per-call timeout and the watchdog, not by
	// the caller going away
	ctx = context.WithoutCancel(ctx)

	targets := d.topology.Secondaries()
	if len(targets) == 0 {
		return nil, types.ErrNothingToSync
	}

	g := cycle.Gesture
	log := utils.Logger().WithFields(logrus.Fields{"cycle": cycle.ID, "kind": g.Kind})

	announce := feedback.Messagef(feedback.KindSync, "sync %s → %d devices…", g, len(targets))
	announce.CycleID = cycle.ID
	d.sink.Emit(announce)

	var primary types.Geometry
	var primaryErr error
	if g.Pointer() {
		primary, primaryErr = d.topology.Geometry(ctx, d.topology.Primary())
	}

	report := &Report{
		CycleID:       cycle.ID,
		Gesture:       g,
		Results:       make([]Result, 0, len(targets)),
		FailedDevices: []string{},
	}

	for i, deviceID := range targets {
		if i > 0 {
			if err := d.sleep(ctx, d.cfg.DevicePause); err != nil {
				log.Debugf("pause interrupted: %v", err)
			}
		}

		d.tracker.SetOutstanding(cycle.ID, deviceID)

		var result Result
		if primaryErr != nil {
			result = Result{DeviceID: deviceID, Message: fmt.Sprintf("primary %v", primaryErr)}
		} else {
			result = d.replicate(ctx, g, primary, deviceID)
		}

		if !d.tracker.Record(cycle.ID, deviceID, result.Success) {
			log.WithField("device", deviceID).Debug("outcome already charged by watchdog")
		}

		report.Results = append(report.Results, result)
		if !result.Success {
			report.FailedDevices = append(report.FailedDevices, deviceID)
			log.WithField("device", deviceID).Warnf("replication failed: %s", result.Message)
		} else {
			log.WithField("device", deviceID).Debugf("replicated: %s", result.Message)
		}
	}

	report.Success = len(report.FailedDevices) == 0
	report.Statistics = d.tracker.Statistics()

	outcome := feedback.Messagef(feedback.KindResult, "%d/%d devices ok", len(targets)-len(report.FailedDevices), len(targets))
	if !report.Success {
		outcome = feedback.Messagef(feedback.KindResult, "%d/%d devices ok, failed: %s",
			len(targets)-len(report.FailedDevices), len(targets), strings.Join(report.FailedDevices, ", "))
	}
	outcome.CycleID = cycle.ID
	d.sink.Emit(outcome)
	d.sink.Emit(feedback.Messagef(feedback.KindStats, "%s", report.Statistics))

	return report, nil
}

// replicate maps and sends the gesture to one device, retrying with a freshly
// mapped action after a timeout or failure.
func (d *Dispatcher) replicate(ctx context.Context, g gesture.Gesture, primary types.Geometry, deviceID string) Result {
	result := Result{DeviceID: deviceID}

	var target types.Geometry
	if g.Pointer() {
		var err error
		target, err = d.topology.Geometry(ctx, deviceID)
		if err != nil {
			result.Message = err.Error()
			return result
		}
		if target.Orientation != primary.Orientation {
			utils.Verbose("%v on %s: %s vs %s, using zone mapping", types.ErrOrientationMismatch, deviceID, primary.Orientation, target.Orientation)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			result.Retried = true
			if err := d.sleep(ctx, d.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		action, err := d.plan(g, primary, target)
		if err != nil {
			result.Message = err.Error()
			return result
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
		_, err = d.channel.SendAction(callCtx, deviceID, action)
		cancel()

		if err == nil {
			result.Success = true
			result.Message = action.String()
			return result
		}

		lastErr = err
		utils.Verbose("attempt %d of %s on %s failed: %v", attempt+1, action, deviceID, err)

		if !retryable(err) {
			break
		}
	}

	result.Message = lastErr.Error()
	return result
}

func retryable(err error) bool {
	return !errors.Is(err, types.ErrDeviceUnavailable)
}

// plan builds the device action for a gesture. Pointer positions are mapped
// on every call so a retry gets new jitter.
func (d *Dispatcher) plan(g gesture.Gesture, primary, target types.Geometry) (devices.Action, error) {
	switch g.Kind {
	case gesture.Tap:
		p := d.mapper.MapPoint(geometry.Normalize(g.Origin, primary.Size), primary.Orientation, target)
		return devices.Action{Kind: devices.ActionTap, X: p.X, Y: p.Y}, nil

	case gesture.LongPress:
		p := d.mapper.MapPoint(geometry.Normalize(g.Origin, primary.Size), primary.Orientation, target)
		ms := int(g.Duration.Milliseconds())
		if ms <= 0 {
			ms = defaultLongPressMs
		}
		return devices.Action{Kind: devices.ActionLongPress, X: p.X, Y: p.Y, DurationMs: ms}, nil

	case gesture.Swipe:
		if g.Destination == nil {
			return devices.Action{}, fmt.Errorf("swipe without destination")
		}
		from, to := d.mapper.MapSwipe(
			geometry.Normalize(g.Origin, primary.Size),
			geometry.Normalize(*g.Destination, primary.Size),
			primary.Orientation, target)
		ms := int(g.Duration.Milliseconds())
		switch {
		case ms <= 0:
			ms = defaultSwipeMs
		case ms < minSwipeMs:
			ms = minSwipeMs
		}
		return devices.Action{Kind: devices.ActionSwipe, X: from.X, Y: from.Y, X2: to.X, Y2: to.Y, DurationMs: ms}, nil

	case gesture.Key:
		if g.KeyCode != "" {
			return devices.Action{Kind: devices.ActionKey, Key: g.KeyCode}, nil
		}
		return devices.Action{Kind: devices.ActionText, Text: g.Text}, nil

	default:
		return devices.Action{}, fmt.Errorf("unsupported gesture kind: %s", g.Kind)
	}
}
