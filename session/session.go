// Package session owns the mutable state of an active sync: the single-flight
// flag, the adaptive event interval, the recent-action history and the
// statistics counters.
//
// The input pump, the dispatcher and the periodic checks all run on separate
// goroutines, so every field is guarded by one mutex and no method holds it
// across a device call.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mobile-next/mobilesync/config"
	"github.com/mobile-next/mobilesync/feedback"
	"github.com/mobile-next/mobilesync/gesture"
	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
)

// Action is an entry of the recent-action history
type Action struct {
	Kind  gesture.Kind `json:"kind"`
	Point types.Point  `json:"point"`
	Time  time.Time    `json:"time"`
}

// Cycle is one admitted gesture being replicated
type Cycle struct {
	ID      string          `json:"id"`
	Gesture gesture.Gesture `json:"gesture"`
	Started time.Time       `json:"started"`
}

type Session struct {
	mu   sync.Mutex
	cfg  config.SyncConfig
	now  func() time.Time
	sink feedback.Sink

	id          string
	enabled     bool
	primary     string
	secondaries []string

	minInterval time.Duration
	continuous  bool
	recent      []Action
	lastEvent   time.Time

	inProgress  bool
	cycle       *Cycle
	outstanding string
	// cycles released by the watchdog, mapped to the device already charged
	expired map[string]string

	stats Statistics
}

type Option func(*Session)

// WithClock replaces time.Now, tests use it to drive time explicitly
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func WithSink(sink feedback.Sink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

func New(cfg config.SyncConfig, opts ...Option) *Session {
	s := &Session{
		cfg:         cfg,
		now:         time.Now,
		sink:        feedback.Discard,
		minInterval: cfg.MinInterval,
		expired:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enable starts a session for a new device set. Counters are kept, every
// flag and the history are cleared.
func (s *Session) Enable(primary string, secondaries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = uuid.NewString()
	s.enabled = true
	s.primary = primary
	s.secondaries = append([]string(nil), secondaries...)
	s.minInterval = s.cfg.MinInterval
	s.continuous = false
	s.recent = nil
	s.lastEvent = time.Time{}
	s.inProgress = false
	s.cycle = nil
	s.outstanding = ""

	utils.Logger().WithField("session", s.id).Debugf("session started: primary %s, %d secondary device(s)", primary, len(secondaries))
}

// Disable stops admitting gestures. A cycle in flight finishes normally.
func (s *Session) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		utils.Logger().WithField("session", s.id).Info("sync disabled")
	}
	s.enabled = false
}

func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Admit decides whether a gesture may start a new cycle. On success the
// session is marked in progress until Finish or the watchdog releases it.
func (s *Session) Admit(g gesture.Gesture) (*Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil, types.ErrSyncDisabled
	}

	if s.inProgress {
		s.sink.Emit(feedback.Messagef(feedback.KindBusy, "busy, %s dropped", g))
		return nil, types.ErrSyncBusy
	}

	now := s.now()
	if !s.lastEvent.IsZero() && now.Sub(s.lastEvent) < s.minInterval {
		utils.Verbose("debounced %s: %v since last event, minimum %v", g, now.Sub(s.lastEvent), s.minInterval)
		return nil, types.ErrDebounced
	}

	cycle := &Cycle{
		ID:      uuid.NewString(),
		Gesture: g,
		Started: now,
	}

	s.inProgress = true
	s.cycle = cycle
	s.outstanding = ""
	s.lastEvent = now

	s.recent = append(s.recent, Action{Kind: g.Kind, Point: g.Origin, Time: now})
	if len(s.recent) > s.cfg.HistorySize {
		s.recent = s.recent[len(s.recent)-s.cfg.HistorySize:]
	}

	return cycle, nil
}

// SetOutstanding names the device the cycle is currently waiting on, so a
// watchdog release can be charged to it
func (s *Session) SetOutstanding(cycleID, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycle != nil && s.cycle.ID == cycleID {
		s.outstanding = deviceID
	}
}

// Record counts one device outcome. An outcome already counted as a timeout
// by the watchdog is skipped and Record returns false.
func (s *Session) Record(cycleID, deviceID string, ok bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if charged, expired := s.expired[cycleID]; expired && charged != "" && charged == deviceID {
		return false
	}

	if s.cycle != nil && s.cycle.ID == cycleID && s.outstanding == deviceID {
		s.outstanding = ""
	}

	s.stats.record(ok)
	return true
}

// Finish releases the single-flight flag if the cycle still holds it
func (s *Session) Finish(cycleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expired, cycleID)
	if s.cycle == nil || s.cycle.ID != cycleID {
		return
	}

	s.inProgress = false
	s.cycle = nil
	s.outstanding = ""
	s.stats.Cycles++
}

// Watchdog force-releases a cycle open longer than the cycle timeout and
// charges a failure to the device it was waiting on, if any.
func (s *Session) Watchdog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inProgress || s.cycle == nil {
		return false
	}

	open := s.now().Sub(s.cycle.Started)
	if open <= s.cfg.CycleTimeout {
		return false
	}

	device := s.outstanding
	cycleID := s.cycle.ID
	s.expired[cycleID] = device
	// between two devices nothing is outstanding, only the cycle is released
	if device != "" {
		s.stats.record(false)
	}
	s.stats.Timeouts++
	s.stats.Cycles++

	s.inProgress = false
	s.cycle = nil
	s.outstanding = ""

	err := fmt.Errorf("%w: cycle %s open for %v", types.ErrCycleTimeout, cycleID, open.Round(time.Millisecond))
	utils.Logger().WithField("device", device).Warn(err)

	ev := feedback.Messagef(feedback.KindTimeout, "%v after %v", types.ErrCycleTimeout, open.Round(time.Millisecond))
	if device != "" {
		ev = feedback.Messagef(feedback.KindTimeout, "device %s timed out", device)
		ev.DeviceID = device
	}
	ev.CycleID = cycleID
	s.sink.Emit(ev)

	return true
}

// CheckContinuous recomputes continuous operation mode from the history:
// enough actions inside the window raise the minimum interval.
func (s *Session) CheckContinuous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, a := range s.recent {
		if now.Sub(a.Time) <= s.cfg.ContinuousWindow {
			count++
		}
	}

	continuous := count >= s.cfg.ContinuousThreshold
	interval := s.cfg.MinInterval
	if continuous {
		interval = s.cfg.ContinuousInterval
		if s.cfg.MaxInterval > 0 && interval > s.cfg.MaxInterval {
			interval = s.cfg.MaxInterval
		}
	}

	if continuous != s.continuous {
		state := "off"
		if continuous {
			state = "on"
		}
		s.sink.Emit(feedback.Messagef(feedback.KindInfo, "continuous operation mode %s, minimum interval %v", state, interval))
	}

	s.continuous = continuous
	s.minInterval = interval
	return continuous
}

// Run drives the periodic mode check and the watchdog until ctx is done
func (s *Session) Run(ctx context.Context) error {
	mode := time.NewTicker(s.cfg.ModeCheckInterval)
	defer mode.Stop()
	watchdog := time.NewTicker(s.cfg.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-mode.C:
			s.CheckContinuous()
		case <-watchdog.C:
			s.Watchdog()
		}
	}
}

func (s *Session) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress
}

func (s *Session) MinInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minInterval
}

func (s *Session) Continuous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.continuous
}

// Snapshot is a copy of the session state for status reporting
type Snapshot struct {
	ID            string     `json:"id"`
	Enabled       bool       `json:"enabled"`
	Primary       string     `json:"primary"`
	Secondaries   []string   `json:"secondaries"`
	MinIntervalMs int64      `json:"minIntervalMs"`
	Continuous    bool       `json:"continuous"`
	InProgress    bool       `json:"inProgress"`
	RecentActions []Action   `json:"recentActions"`
	LastEvent     time.Time  `json:"lastEvent"`
	Statistics    Statistics `json:"statistics"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:            s.id,
		Enabled:       s.enabled,
		Primary:       s.primary,
		Secondaries:   append([]string(nil), s.secondaries...),
		MinIntervalMs: s.minInterval.Milliseconds(),
		Continuous:    s.continuous,
		InProgress:    s.inProgress,
		RecentActions: append([]Action(nil), s.recent...),
		LastEvent:     s.lastEvent,
		Statistics:    s.stats,
	}
}
