// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/rawframe/internal/channel"
	"firestige.xyz/rawframe/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `rawframe:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Channel ChannelConfig `mapstructure:"channel"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Channel ───

// ChannelConfig selects and configures the transmission backend.
type ChannelConfig struct {
	Backend      string          `mapstructure:"backend"`   // socket | afpacket | tun | pcap
	Interface    string          `mapstructure:"interface"` // required by socket and afpacket
	Type         string          `mapstructure:"type"`      // raw | dgram
	Protocol     string          `mapstructure:"protocol"`  // all | arp | ipv4
	Peer         string          `mapstructure:"peer"`      // dgram link destination, empty = broadcast
	DropIncoming bool            `mapstructure:"drop_incoming"`
	AFPacket     AFPacketConfig  `mapstructure:"afpacket"`
	TUN          TUNConfig       `mapstructure:"tun"`
	PCAP         PCAPConfig      `mapstructure:"pcap"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// AFPacketConfig sizes the TPACKET_V3 ring.
type AFPacketConfig struct {
	FrameSize int `mapstructure:"frame_size"`
	BlockSize int `mapstructure:"block_size"`
	NumBlocks int `mapstructure:"num_blocks"`
}

// TUNConfig configures the TUN device.
type TUNConfig struct {
	Name    string `mapstructure:"name"`
	Persist bool   `mapstructure:"persist"`
}

// PCAPConfig configures the capture file sink.
type PCAPConfig struct {
	Path     string `mapstructure:"path"`
	SnapLen  int    `mapstructure:"snap_len"`
	LinkType string `mapstructure:"link_type"` // ethernet | raw
}

// RateLimitConfig caps frames per destination per window; 0 disables it.
type RateLimitConfig struct {
	MaxFramesPerDest int           `mapstructure:"max_frames_per_dest"`
	Window           time.Duration `mapstructure:"window"`
}

// Resolve converts the textual settings into the channel factory's arguments.
func (c ChannelConfig) Resolve() (channel.Backend, channel.Config, error) {
	backend := channel.Backend(strings.ToLower(c.Backend))
	if !channel.IsBackendSupported(backend) {
		return "", channel.Config{}, fmt.Errorf("channel.backend %q: %w", c.Backend, core.ErrUnknownBackend)
	}

	typ, err := channel.ParseType(c.Type)
	if err != nil {
		return "", channel.Config{}, fmt.Errorf("channel.type: %w", err)
	}
	proto, err := channel.ParseProtocol(c.Protocol)
	if err != nil {
		return "", channel.Config{}, fmt.Errorf("channel.protocol: %w", err)
	}
	var peer core.HardwareAddr
	if c.Peer != "" {
		if peer, err = core.ParseHardwareAddr(c.Peer); err != nil {
			return "", channel.Config{}, fmt.Errorf("channel.peer: %w", err)
		}
	}

	return backend, channel.Config{
		Interface:    c.Interface,
		Type:         typ,
		Protocol:     proto,
		Peer:         peer,
		DropIncoming: c.DropIncoming,
		AFPacket: channel.AFPacketConfig{
			FrameSize: c.AFPacket.FrameSize,
			BlockSize: c.AFPacket.BlockSize,
			NumBlocks: c.AFPacket.NumBlocks,
		},
		TUN:  channel.TUNConfig{Name: c.TUN.Name, Persist: c.TUN.Persist},
		PCAP: channel.PCAPConfig{Path: c.PCAP.Path, SnapLen: c.PCAP.SnapLen, LinkType: c.PCAP.LinkType},
		RateLimit: channel.RateLimitConfig{
			MaxFramesPerDest: c.RateLimit.MaxFramesPerDest,
			Window:           c.RateLimit.Window,
		},
	}, nil
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `rawframe: ...`.
type configRoot struct {
	Rawframe GlobalConfig `mapstructure:"rawframe"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// The YAML file uses `rawframe:` as root key; env vars use the RAWFRAME_ prefix (e.g., RAWFRAME_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `rawframe.` key prefix maps to `RAWFRAME_` through the key replacer
	// (e.g., key "rawframe.channel.interface" → env "RAWFRAME_CHANNEL_INTERFACE").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Rawframe

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// Every key is registered so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("rawframe.log.level", "info")
	v.SetDefault("rawframe.log.format", "text")
	v.SetDefault("rawframe.log.outputs.file.enabled", false)
	v.SetDefault("rawframe.log.outputs.file.path", "/var/log/rawframe/rawframe.log")
	v.SetDefault("rawframe.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("rawframe.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("rawframe.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("rawframe.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("rawframe.metrics.enabled", false)
	v.SetDefault("rawframe.metrics.listen", ":9091")
	v.SetDefault("rawframe.metrics.path", "/metrics")

	// Channel defaults
	v.SetDefault("rawframe.channel.backend", string(channel.BackendSocket))
	v.SetDefault("rawframe.channel.interface", "")
	v.SetDefault("rawframe.channel.type", "raw")
	v.SetDefault("rawframe.channel.protocol", "all")
	v.SetDefault("rawframe.channel.peer", "")
	v.SetDefault("rawframe.channel.drop_incoming", true)
	v.SetDefault("rawframe.channel.afpacket.frame_size", 0)
	v.SetDefault("rawframe.channel.afpacket.block_size", 0)
	v.SetDefault("rawframe.channel.afpacket.num_blocks", 0)
	v.SetDefault("rawframe.channel.tun.name", "")
	v.SetDefault("rawframe.channel.tun.persist", false)
	v.SetDefault("rawframe.channel.pcap.path", "")
	v.SetDefault("rawframe.channel.pcap.snap_len", 65536)
	v.SetDefault("rawframe.channel.pcap.link_type", "ethernet")
	v.SetDefault("rawframe.channel.rate_limit.max_frames_per_dest", 0)
	v.SetDefault("rawframe.channel.rate_limit.window", "1s")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error): %w", cfg.Log.Level, core.ErrConfigInvalid)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text): %w", cfg.Log.Format, core.ErrConfigInvalid)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("log.outputs.file.path is required when file output is enabled: %w", core.ErrConfigInvalid)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics.enabled=true: %w", core.ErrConfigInvalid)
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}

	// ── Channel validation ──
	cfg.Channel.Backend = strings.ToLower(cfg.Channel.Backend)
	if _, _, err := cfg.Channel.Resolve(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
	}
	if cfg.Channel.RateLimit.MaxFramesPerDest < 0 {
		return fmt.Errorf("channel.rate_limit.max_frames_per_dest must not be negative: %w", core.ErrConfigInvalid)
	}
	if cfg.Channel.RateLimit.MaxFramesPerDest > 0 && cfg.Channel.RateLimit.Window <= 0 {
		cfg.Channel.RateLimit.Window = time.Second
	}

	switch channel.Backend(cfg.Channel.Backend) {
	case channel.BackendPCAP:
		if cfg.Channel.PCAP.Path == "" {
			return fmt.Errorf("channel.pcap.path is required for the pcap backend: %w", core.ErrConfigInvalid)
		}
	case channel.BackendAFPacket:
		if cfg.Channel.Interface == "" {
			return fmt.Errorf("channel.interface is required for the afpacket backend: %w", core.ErrConfigInvalid)
		}
	}

	return nil
}
