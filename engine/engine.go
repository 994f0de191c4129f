// Package engine is the control surface of the sync system: it binds devices,
// turns raw input into gestures and hands admitted gestures to the dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mobile-next/mobilesync/bridge"
	"github.com/mobile-next/mobilesync/config"
	"github.com/mobile-next/mobilesync/dispatch"
	"github.com/mobile-next/mobilesync/feedback"
	"github.com/mobile-next/mobilesync/geometry"
	"github.com/mobile-next/mobilesync/gesture"
	"github.com/mobile-next/mobilesync/input"
	"github.com/mobile-next/mobilesync/session"
	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
	"golang.org/x/sync/errgroup"
)

// Channel is everything the engine needs from the device command channel
type Channel interface {
	bridge.Channel
	dispatch.CommandChannel
}

type Engine struct {
	control sync.Mutex

	cfg        config.Config
	bridge     *bridge.Bridge
	session    *session.Session
	dispatcher *dispatch.Dispatcher
	classifier *gesture.Classifier
	hub        *feedback.Hub
	sink       feedback.Sink
}

type options struct {
	sink  feedback.Sink
	rng   geometry.Rand
	sleep dispatch.SleepFunc
	clock func() time.Time
}

type Option func(*options)

// WithSink adds a sink next to the log and the subscriber hub
func WithSink(sink feedback.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

func WithRand(rng geometry.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

func WithSleep(fn dispatch.SleepFunc) Option {
	return func(o *options) {
		o.sleep = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

func New(cfg config.Config, channel Channel, opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hub := feedback.NewHub()
	sinks := feedback.Multi{feedback.NewLogSink(utils.Logger()), hub}
	if o.sink != nil {
		sinks = append(sinks, o.sink)
	}

	sessionOpts := []session.Option{session.WithSink(sinks)}
	if o.clock != nil {
		sessionOpts = append(sessionOpts, session.WithClock(o.clock))
	}

	b := bridge.New(channel, cfg.Adb.QueryTimeout)
	s := session.New(cfg.Sync, sessionOpts...)
	mapper := geometry.NewMapper(o.rng, cfg.Mapping.TapJitter, cfg.Mapping.SwipeJitter)

	dispatchOpts := []dispatch.Option{dispatch.WithSink(sinks)}
	if o.sleep != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithSleep(o.sleep))
	}

	return &Engine{
		cfg:        cfg,
		bridge:     b,
		session:    s,
		dispatcher: dispatch.New(channel, b, s, mapper, cfg.Dispatch, dispatchOpts...),
		classifier: gesture.NewClassifier(cfg.Classifier.LongPress, cfg.Classifier.MoveThreshold),
		hub:        hub,
		sink:       sinks,
	}
}

// Enable binds primary to the secondaries and starts admitting gestures.
// Counters survive, everything else of the previous session is reset.
func (e *Engine) Enable(ctx context.Context, primary string, secondaries []string) error {
	e.control.Lock()
	defer e.control.Unlock()

	if len(secondaries) == 0 {
		return types.ErrNothingToSync
	}

	if err := e.bridge.Bind(ctx, primary, secondaries); err != nil {
		return err
	}

	bound := e.bridge.Secondaries()
	if len(bound) == 0 {
		e.bridge.Teardown()
		return types.ErrNothingToSync
	}

	e.session.Enable(primary, bound)
	e.classifier.SetSurface(primary)
	e.sink.Emit(feedback.Messagef(feedback.KindInfo, "sync enabled: %s → %d devices", primary, len(bound)))
	return nil
}

// Disable stops admitting gestures. The bridge stays bound so Enable or
// RebuildBridge can resume quickly.
func (e *Engine) Disable() {
	e.control.Lock()
	defer e.control.Unlock()

	e.session.Disable()
	e.classifier.Reset()
	e.sink.Emit(feedback.Messagef(feedback.KindInfo, "sync disabled, %s", e.session.Statistics()))
}

// RebuildBridge re-reads every device geometry of the current binding
func (e *Engine) RebuildBridge(ctx context.Context) error {
	e.control.Lock()
	defer e.control.Unlock()

	if err := e.bridge.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to rebuild bridge: %w", err)
	}

	e.sink.Emit(feedback.Messagef(feedback.KindInfo, "bridge rebuilt for %d devices", len(e.bridge.Secondaries())))
	return nil
}

// Close disables sync and forgets the bridge
func (e *Engine) Close() error {
	e.control.Lock()
	defer e.control.Unlock()

	e.session.Disable()
	e.bridge.Teardown()
	return nil
}

func (e *Engine) Statistics() session.Statistics {
	return e.session.Statistics()
}

// Status describes the engine for reporting
type Status struct {
	Session    session.Snapshot   `json:"session"`
	Bound      bool               `json:"bound"`
	SizeRatios []bridge.SizeRatio `json:"sizeRatios"`
}

func (e *Engine) Status() Status {
	return Status{
		Session:    e.session.Snapshot(),
		Bound:      e.bridge.Bound(),
		SizeRatios: e.bridge.SizeRatios(),
	}
}

// Hub exposes the feedback stream to subscribers
func (e *Engine) Hub() *feedback.Hub {
	return e.hub
}

// HandleGesture admits a gesture and replicates it. Rejections by the guard
// come back as ErrSyncDisabled, ErrSyncBusy or ErrDebounced.
func (e *Engine) HandleGesture(ctx context.Context, g gesture.Gesture) (*dispatch.Report, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	cycle, err := e.session.Admit(g)
	if err != nil {
		return nil, err
	}

	return e.dispatcher.Dispatch(ctx, cycle)
}

// HandleEvent feeds a raw event to the classifier. It returns a nil report
// when the event did not complete a gesture.
func (e *Engine) HandleEvent(ctx context.Context, ev input.Event) (*dispatch.Report, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	g, ok := e.classifier.Feed(ev)
	if !ok {
		return nil, nil
	}

	return e.HandleGesture(ctx, g)
}

// Run drives the periodic session checks and, when src is not nil, pumps its
// events through HandleEvent. It returns when ctx is done or src is exhausted.
func (e *Engine) Run(ctx context.Context, src input.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return e.session.Run(gctx)
	})

	if src != nil {
		if err := src.Start(gctx); err != nil {
			return fmt.Errorf("failed to start input source: %w", err)
		}

		group.Go(func() error {
			defer cancel()
			defer func() { _ = src.Stop() }()
			return e.pump(gctx, src.Events())
		})
	}

	return group.Wait()
}

func (e *Engine) pump(ctx context.Context, events <-chan input.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				utils.Verbose("input source exhausted")
				return nil
			}

			if _, err := e.HandleEvent(ctx, ev); err != nil {
				logRejection(err)
			}
		}
	}
}

func logRejection(err error) {
	switch {
	case errors.Is(err, types.ErrSyncBusy), errors.Is(err, types.ErrDebounced), errors.Is(err, types.ErrSyncDisabled):
		utils.Verbose("gesture rejected: %v", err)
	default:
		utils.Warn("failed to handle event: %v", err)
	}
}
