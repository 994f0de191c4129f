package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 300*time.Millisecond, cfg.Sync.MinInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.ContinuousInterval)
	assert.Equal(t, 8*time.Second, cfg.Dispatch.CommandTimeout)
	assert.Equal(t, 1, cfg.Dispatch.Retries)
	assert.Equal(t, 10, cfg.Sync.HistorySize)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesFromFile(t *testing.T) {
	content := `
[sync]
cycle_timeout = 4s
continuous_threshold = 4

[dispatch]
device_pause = 100ms
retries = 2

[mapping]
tap_jitter = 2

[adb]
path = /opt/platform-tools/adb

[server]
listen = 0.0.0.0:13000
cors = true
`
	path := filepath.Join(t.TempDir(), "mobilesync.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.Sync.CycleTimeout)
	assert.Equal(t, 4, cfg.Sync.ContinuousThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatch.DevicePause)
	assert.Equal(t, 2, cfg.Dispatch.Retries)
	assert.Equal(t, 2, cfg.Mapping.TapJitter)
	assert.Equal(t, 10, cfg.Mapping.SwipeJitter)
	assert.Equal(t, "/opt/platform-tools/adb", cfg.Adb.Path)
	assert.Equal(t, "0.0.0.0:13000", cfg.Server.Listen)
	assert.True(t, cfg.Server.CORS)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestValidate_ClampsIntervals(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"below lower bound", 100 * time.Millisecond, 300 * time.Millisecond},
		{"inside bounds", 400 * time.Millisecond, 400 * time.Millisecond},
		{"above upper bound", 2 * time.Second, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sync.MinInterval = tt.in
			cfg.Sync.ContinuousInterval = 800 * time.Millisecond
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.want, cfg.Sync.MinInterval)
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero cycle timeout", func(c *Config) { c.Sync.CycleTimeout = 0 }},
		{"negative retries", func(c *Config) { c.Dispatch.Retries = -1 }},
		{"history smaller than threshold", func(c *Config) { c.Sync.HistorySize = 2 }},
		{"continuous below min", func(c *Config) { c.Sync.MinInterval = 700 * time.Millisecond }},
		{"continuous above max", func(c *Config) { c.Sync.MaxInterval = 400 * time.Millisecond }},
		{"empty adb path", func(c *Config) { c.Adb.Path = "" }},
		{"negative jitter", func(c *Config) { c.Mapping.SwipeJitter = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte("[classifier]\nlong_press = 1s\nmove_threshold = 15\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Classifier.LongPress)
	assert.Equal(t, 15, cfg.Classifier.MoveThreshold)
}
