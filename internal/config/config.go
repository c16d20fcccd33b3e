// Package config loads the runtime configuration via viper, from a YAML
// config file and FLOWBRIDGE_-prefixed environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete flowbridge configuration.
type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	State      StateConfig      `mapstructure:"state"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// EngineConfig describes how to reach the external dataflow engine.
type EngineConfig struct {
	// Binary is the engine CLI used for lifecycle commands.
	Binary string `mapstructure:"binary"`
	// NodeEndpoint is the coordinator's dynamic-node websocket endpoint.
	NodeEndpoint string `mapstructure:"node_endpoint"`
	// DaemonSettleMs is how long to wait after launching the daemon.
	DaemonSettleMs int `mapstructure:"daemon_settle_ms"`
}

// DispatcherConfig controls startup pacing.
type DispatcherConfig struct {
	// ConnectAttempts bounds the bridge connect retry loop.
	ConnectAttempts int `mapstructure:"connect_attempts"`
	// ConnectRetryDelayMs is the fixed delay between attempts.
	ConnectRetryDelayMs int `mapstructure:"connect_retry_delay_ms"`
	// ReadyTimeoutMs bounds the poll-until-ready window after a detached
	// start.
	ReadyTimeoutMs int `mapstructure:"ready_timeout_ms"`
	// ReadyPollIntervalMs is the listing poll cadence inside that window.
	ReadyPollIntervalMs int `mapstructure:"ready_poll_interval_ms"`
}

// BridgeConfig controls the per-node workers.
type BridgeConfig struct {
	// CommandQueueSize bounds each bridge's outbound queue.
	CommandQueueSize int `mapstructure:"command_queue_size"`
	// RecvTimeoutMs is the inbound wait per worker iteration.
	RecvTimeoutMs int `mapstructure:"recv_timeout_ms"`
	// ConnectWaitMs is how long Connect blocks for the initial attach.
	ConnectWaitMs int `mapstructure:"connect_wait_ms"`
	// JoinTimeoutMs is how long Disconnect waits before abandoning the
	// worker.
	JoinTimeoutMs int `mapstructure:"join_timeout_ms"`
	// SessionTrackLimit bounds the audio bridge's per-question tracking
	// sets.
	SessionTrackLimit int `mapstructure:"session_track_limit"`
}

// StateConfig bounds the shared state store.
type StateConfig struct {
	MaxChatMessages int `mapstructure:"max_chat_messages"`
	MaxAudioChunks  int `mapstructure:"max_audio_chunks"`
	MaxLogEntries   int `mapstructure:"max_log_entries"`
}

// LoggingConfig controls the runtime's own structured log.
type LoggingConfig struct {
	// Level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
	// File is the log destination; empty logs to stderr.
	File string `mapstructure:"file"`
}

// SetDefaults registers defaults so a missing config file still yields a
// usable configuration.
func SetDefaults() {
	viper.SetDefault("engine.binary", "flow")
	viper.SetDefault("engine.node_endpoint", "ws://127.0.0.1:53290")
	viper.SetDefault("engine.daemon_settle_ms", 1000)

	viper.SetDefault("dispatcher.connect_attempts", 15)
	viper.SetDefault("dispatcher.connect_retry_delay_ms", 2000)
	viper.SetDefault("dispatcher.ready_timeout_ms", 10000)
	viper.SetDefault("dispatcher.ready_poll_interval_ms", 250)

	viper.SetDefault("bridge.command_queue_size", 64)
	viper.SetDefault("bridge.recv_timeout_ms", 100)
	viper.SetDefault("bridge.connect_wait_ms", 200)
	viper.SetDefault("bridge.join_timeout_ms", 2000)
	viper.SetDefault("bridge.session_track_limit", 100)

	viper.SetDefault("state.max_chat_messages", 500)
	viper.SetDefault("state.max_audio_chunks", 64)
	viper.SetDefault("state.max_log_entries", 1000)

	viper.SetDefault("logging.level", "INFO")
	viper.SetDefault("logging.file", "")
}

// Load unmarshals the effective viper configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the directory searched for the config file.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "flowbridge")
}

// DaemonSettle returns the daemon settle interval as a Duration.
func (c EngineConfig) DaemonSettle() time.Duration {
	return time.Duration(c.DaemonSettleMs) * time.Millisecond
}

// ConnectRetryDelay returns the retry delay as a Duration.
func (c DispatcherConfig) ConnectRetryDelay() time.Duration {
	return time.Duration(c.ConnectRetryDelayMs) * time.Millisecond
}

// ReadyTimeout returns the ready window as a Duration.
func (c DispatcherConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMs) * time.Millisecond
}

// ReadyPollInterval returns the poll cadence as a Duration.
func (c DispatcherConfig) ReadyPollInterval() time.Duration {
	return time.Duration(c.ReadyPollIntervalMs) * time.Millisecond
}

// RecvTimeout returns the worker inbound wait as a Duration.
func (c BridgeConfig) RecvTimeout() time.Duration {
	return time.Duration(c.RecvTimeoutMs) * time.Millisecond
}

// ConnectWait returns the connect wait as a Duration.
func (c BridgeConfig) ConnectWait() time.Duration {
	return time.Duration(c.ConnectWaitMs) * time.Millisecond
}

// JoinTimeout returns the disconnect join timeout as a Duration.
func (c BridgeConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutMs) * time.Millisecond
}
