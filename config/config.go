// Package config loads the sync engine settings from an INI file.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// bounds for the adaptive minimum interval between admitted gestures
const (
	MinEventInterval = 300 * time.Millisecond
	MaxEventInterval = 800 * time.Millisecond
)

type SyncConfig struct {
	MinInterval         time.Duration
	ContinuousInterval  time.Duration
	MaxInterval         time.Duration
	ContinuousWindow    time.Duration
	ContinuousThreshold int
	HistorySize         int
	ModeCheckInterval   time.Duration
	WatchdogInterval    time.Duration
	CycleTimeout        time.Duration
}

type DispatchConfig struct {
	CommandTimeout time.Duration
	DevicePause    time.Duration
	RetryDelay     time.Duration
	Retries        int
}

type ClassifierConfig struct {
	LongPress     time.Duration
	MoveThreshold int
}

type MappingConfig struct {
	TapJitter   int
	SwipeJitter int
}

type AdbConfig struct {
	Path         string
	QueryTimeout time.Duration
}

type ServerConfig struct {
	Listen string
	CORS   bool
}

// Config is the complete engine configuration
type Config struct {
	Sync       SyncConfig
	Dispatch   DispatchConfig
	Classifier ClassifierConfig
	Mapping    MappingConfig
	Adb        AdbConfig
	Server     ServerConfig
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Sync: SyncConfig{
			MinInterval:         MinEventInterval,
			ContinuousInterval:  500 * time.Millisecond,
			MaxInterval:         MaxEventInterval,
			ContinuousWindow:    5 * time.Second,
			ContinuousThreshold: 3,
			HistorySize:         10,
			ModeCheckInterval:   5 * time.Second,
			WatchdogInterval:    time.Second,
			CycleTimeout:        8 * time.Second,
		},
		Dispatch: DispatchConfig{
			CommandTimeout: 8 * time.Second,
			DevicePause:    500 * time.Millisecond,
			RetryDelay:     300 * time.Millisecond,
			Retries:        1,
		},
		Classifier: ClassifierConfig{
			LongPress:     800 * time.Millisecond,
			MoveThreshold: 10,
		},
		Mapping: MappingConfig{
			TapJitter:   5,
			SwipeJitter: 10,
		},
		Adb: AdbConfig{
			Path:         "adb",
			QueryTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Listen: "localhost:12000",
		},
	}
}

// Load reads an INI file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	apply(file, &cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse is Load for in-memory content
func Parse(data []byte) (Config, error) {
	cfg := Default()
	file, err := ini.Load(data)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	apply(file, &cfg)
	return cfg, cfg.Validate()
}

func apply(file *ini.File, cfg *Config) {
	s := file.Section("sync")
	cfg.Sync.MinInterval = s.Key("min_interval").MustDuration(cfg.Sync.MinInterval)
	cfg.Sync.ContinuousInterval = s.Key("continuous_interval").MustDuration(cfg.Sync.ContinuousInterval)
	cfg.Sync.MaxInterval = s.Key("max_interval").MustDuration(cfg.Sync.MaxInterval)
	cfg.Sync.ContinuousWindow = s.Key("continuous_window").MustDuration(cfg.Sync.ContinuousWindow)
	cfg.Sync.ContinuousThreshold = s.Key("continuous_threshold").MustInt(cfg.Sync.ContinuousThreshold)
	cfg.Sync.HistorySize = s.Key("history_size").MustInt(cfg.Sync.HistorySize)
	cfg.Sync.ModeCheckInterval = s.Key("mode_check_interval").MustDuration(cfg.Sync.ModeCheckInterval)
	cfg.Sync.WatchdogInterval = s.Key("watchdog_interval").MustDuration(cfg.Sync.WatchdogInterval)
	cfg.Sync.CycleTimeout = s.Key("cycle_timeout").MustDuration(cfg.Sync.CycleTimeout)

	d := file.Section("dispatch")
	cfg.Dispatch.CommandTimeout = d.Key("command_timeout").MustDuration(cfg.Dispatch.CommandTimeout)
	cfg.Dispatch.DevicePause = d.Key("device_pause").MustDuration(cfg.Dispatch.DevicePause)
	cfg.Dispatch.RetryDelay = d.Key("retry_delay").MustDuration(cfg.Dispatch.RetryDelay)
	cfg.Dispatch.Retries = d.Key("retries").MustInt(cfg.Dispatch.Retries)

	c := file.Section("classifier")
	cfg.Classifier.LongPress = c.Key("long_press").MustDuration(cfg.Classifier.LongPress)
	cfg.Classifier.MoveThreshold = c.Key("move_threshold").MustInt(cfg.Classifier.MoveThreshold)

	m := file.Section("mapping")
	cfg.Mapping.TapJitter = m.Key("tap_jitter").MustInt(cfg.Mapping.TapJitter)
	cfg.Mapping.SwipeJitter = m.Key("swipe_jitter").MustInt(cfg.Mapping.SwipeJitter)

	a := file.Section("adb")
	cfg.Adb.Path = a.Key("path").MustString(cfg.Adb.Path)
	cfg.Adb.QueryTimeout = a.Key("query_timeout").MustDuration(cfg.Adb.QueryTimeout)

	srv := file.Section("server")
	cfg.Server.Listen = srv.Key("listen").MustString(cfg.Server.Listen)
	cfg.Server.CORS = srv.Key("cors").MustBool(cfg.Server.CORS)
}

// Validate clamps the event intervals into their allowed range and rejects
// values the engine cannot run with.
func (c *Config) Validate() error {
	c.Sync.MinInterval = clampInterval(c.Sync.MinInterval)
	c.Sync.ContinuousInterval = clampInterval(c.Sync.ContinuousInterval)
	c.Sync.MaxInterval = clampInterval(c.Sync.MaxInterval)

	if c.Sync.ContinuousInterval < c.Sync.MinInterval {
		return fmt.Errorf("continuous_interval %v is below min_interval %v", c.Sync.ContinuousInterval, c.Sync.MinInterval)
	}
	if c.Sync.ContinuousInterval > c.Sync.MaxInterval {
		return fmt.Errorf("continuous_interval %v is above max_interval %v", c.Sync.ContinuousInterval, c.Sync.MaxInterval)
	}

	positive := map[string]time.Duration{
		"sync.continuous_window":    c.Sync.ContinuousWindow,
		"sync.mode_check_interval":  c.Sync.ModeCheckInterval,
		"sync.watchdog_interval":    c.Sync.WatchdogInterval,
		"sync.cycle_timeout":        c.Sync.CycleTimeout,
		"dispatch.command_timeout":  c.Dispatch.CommandTimeout,
		"classifier.long_press":     c.Classifier.LongPress,
		"adb.query_timeout":         c.Adb.QueryTimeout,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, value)
		}
	}

	if c.Sync.ContinuousThreshold < 1 {
		return fmt.Errorf("sync.continuous_threshold must be at least 1, got %d", c.Sync.ContinuousThreshold)
	}
	if c.Sync.HistorySize < c.Sync.ContinuousThreshold {
		return fmt.Errorf("sync.history_size %d cannot hold continuous_threshold %d actions", c.Sync.HistorySize, c.Sync.ContinuousThreshold)
	}
	if c.Dispatch.Retries < 0 {
		return fmt.Errorf("dispatch.retries cannot be negative, got %d", c.Dispatch.Retries)
	}
	if c.Dispatch.DevicePause < 0 || c.Dispatch.RetryDelay < 0 {
		return fmt.Errorf("dispatch pauses cannot be negative")
	}
	if c.Classifier.MoveThreshold < 0 || c.Mapping.TapJitter < 0 || c.Mapping.SwipeJitter < 0 {
		return fmt.Errorf("thresholds and jitter cannot be negative")
	}
	if c.Adb.Path == "" {
		return fmt.Errorf("adb.path is required")
	}

	return nil
}

func clampInterval(d time.Duration) time.Duration {
	if d < MinEventInterval {
		return MinEventInterval
	}
	if d > MaxEventInterval {
		return MaxEventInterval
	}
	return d
}
