package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/grailctl/internal/logging"
	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/protocol/aggregator"
	"github.com/danmuck/grailctl/internal/transport"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the resolved grailctl configuration. Zero-valued sections keep
// their defaults.
type Config struct {
	Log        LogConfig
	Transport  transport.Config
	Aggregator AggregatorConfig
	WorldModel WorldModelConfig
	Status     StatusConfig
}

type LogConfig struct {
	Level      string
	Timestamp  bool
	NoColor    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type AggregatorConfig struct {
	Addr      string
	Rules     []aggregator.Rule
	MaxQueued int
	// KeepAlive is the interval between keep alive messages; zero disables
	// them.
	KeepAlive time.Duration
}

type WorldModelConfig struct {
	Addr      string
	Origin    string
	KeepAlive time.Duration
}

type StatusConfig struct {
	Listen      string
	CorsOrigins []string
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
		Transport: transport.DefaultConfig(),
		Aggregator: AggregatorConfig{
			Addr:      "localhost:7008",
			MaxQueued: 1024,
		},
		WorldModel: WorldModelConfig{
			Addr:   "localhost:7009",
			Origin: "grailctl",
		},
		Status: StatusConfig{
			CorsOrigins: []string{},
		},
	}
}

type fileConfig struct {
	Log        fileLog        `toml:"log"`
	Transport  fileTransport  `toml:"transport"`
	Aggregator fileAggregator `toml:"aggregator"`
	WorldModel fileWorldModel `toml:"world_model"`
	Status     fileStatus     `toml:"status"`
}

type fileLog struct {
	Level      string `toml:"level"`
	Timestamp  bool   `toml:"timestamp"`
	NoColor    bool   `toml:"no_color"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type fileTransport struct {
	ConnectTimeout  string  `toml:"connect_timeout"`
	ReadTimeout     string  `toml:"read_timeout"`
	WriteTimeout    string  `toml:"write_timeout"`
	ConnectAttempts int     `toml:"connect_attempts"`
	BackoffInitial  string  `toml:"backoff_initial"`
	BackoffMax      string  `toml:"backoff_max"`
	BackoffFactor   float64 `toml:"backoff_multiplier"`
	BackoffJitter   bool    `toml:"backoff_jitter"`
}

type fileAggregator struct {
	Addr      string     `toml:"addr"`
	MaxQueued int        `toml:"max_queued"`
	KeepAlive string     `toml:"keepalive"`
	Rules     []fileRule `toml:"rules"`
}

type fileRule struct {
	Phy        uint8        `toml:"phy"`
	IntervalMS uint64       `toml:"interval_ms"`
	Filters    []fileFilter `toml:"filters"`
}

type fileFilter struct {
	ID   string `toml:"id"`
	Mask string `toml:"mask"`
}

type fileWorldModel struct {
	Addr      string `toml:"addr"`
	Origin    string `toml:"origin"`
	KeepAlive string `toml:"keepalive"`
}

type fileStatus struct {
	Listen      string   `toml:"listen"`
	CorsOrigins []string `toml:"cors_origins"`
}

// Load reads a TOML file over Default(). Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg, err := resolve(raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML text the same way Load parses a file.
func Decode(text string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg, err := resolve(raw, meta)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolve(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "max_age_days") {
		cfg.Log.MaxAgeDays = raw.Log.MaxAgeDays
	}
	if meta.IsDefined("log", "compress") {
		cfg.Log.Compress = raw.Log.Compress
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.Transport.ConnectTimeout, &cfg.Transport.ConnectTimeout},
		{"read_timeout", raw.Transport.ReadTimeout, &cfg.Transport.ReadTimeout},
		{"write_timeout", raw.Transport.WriteTimeout, &cfg.Transport.WriteTimeout},
		{"backoff_initial", raw.Transport.BackoffInitial, &cfg.Transport.Backoff.InitialDelay},
		{"backoff_max", raw.Transport.BackoffMax, &cfg.Transport.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined("transport", d.key) {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("transport.%s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("transport", "connect_attempts") {
		cfg.Transport.ConnectAttempts = raw.Transport.ConnectAttempts
	}
	if meta.IsDefined("transport", "backoff_multiplier") {
		cfg.Transport.Backoff.Multiplier = raw.Transport.BackoffFactor
	}
	if meta.IsDefined("transport", "backoff_jitter") {
		cfg.Transport.Backoff.Jitter = raw.Transport.BackoffJitter
	}

	if meta.IsDefined("aggregator", "addr") {
		cfg.Aggregator.Addr = strings.TrimSpace(raw.Aggregator.Addr)
	}
	if meta.IsDefined("aggregator", "max_queued") {
		cfg.Aggregator.MaxQueued = raw.Aggregator.MaxQueued
	}
	if meta.IsDefined("aggregator", "keepalive") {
		v, err := parseDuration(raw.Aggregator.KeepAlive)
		if err != nil {
			return Config{}, fmt.Errorf("aggregator.keepalive: %w", err)
		}
		cfg.Aggregator.KeepAlive = v
	}
	if meta.IsDefined("aggregator", "rules") {
		rules, err := resolveRules(raw.Aggregator.Rules)
		if err != nil {
			return Config{}, err
		}
		cfg.Aggregator.Rules = rules
	}

	if meta.IsDefined("world_model", "addr") {
		cfg.WorldModel.Addr = strings.TrimSpace(raw.WorldModel.Addr)
	}
	if meta.IsDefined("world_model", "origin") {
		cfg.WorldModel.Origin = strings.TrimSpace(raw.WorldModel.Origin)
	}
	if meta.IsDefined("world_model", "keepalive") {
		v, err := parseDuration(raw.WorldModel.KeepAlive)
		if err != nil {
			return Config{}, fmt.Errorf("world_model.keepalive: %w", err)
		}
		cfg.WorldModel.KeepAlive = v
	}

	if meta.IsDefined("status", "listen") {
		cfg.Status.Listen = strings.TrimSpace(raw.Status.Listen)
	}
	if meta.IsDefined("status", "cors_origins") {
		cfg.Status.CorsOrigins = normalizeList(raw.Status.CorsOrigins)
	}
	return cfg, nil
}

func resolveRules(in []fileRule) ([]aggregator.Rule, error) {
	rules := make([]aggregator.Rule, 0, len(in))
	for i, fr := range in {
		rule := aggregator.Rule{
			PhyLayer:       fr.Phy,
			UpdateInterval: fr.IntervalMS,
			Filters:        make([]aggregator.IDMask, 0, len(fr.Filters)),
		}
		for j, ff := range fr.Filters {
			f, err := resolveFilter(ff)
			if err != nil {
				return nil, fmt.Errorf("aggregator.rules[%d].filters[%d]: %w", i, j, err)
			}
			rule.Filters = append(rule.Filters, f)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func resolveFilter(ff fileFilter) (aggregator.IDMask, error) {
	id, err := protocol.ParseWideID(ff.ID)
	if err != nil {
		return aggregator.IDMask{}, fmt.Errorf("id: %w", err)
	}
	mask := protocol.NewWideID(aggregator.DefaultMask)
	if strings.TrimSpace(ff.Mask) != "" {
		if mask, err = protocol.ParseWideID(ff.Mask); err != nil {
			return aggregator.IDMask{}, fmt.Errorf("mask: %w", err)
		}
	}
	return aggregator.IDMask{ID: id, Mask: mask}, nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (c Config) Validate() error {
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Transport.ConnectTimeout < 0 || c.Transport.ReadTimeout < 0 || c.Transport.WriteTimeout < 0 {
		return fmt.Errorf("%w: transport timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Transport.ConnectAttempts < 1 {
		return fmt.Errorf("%w: transport.connect_attempts must be at least 1", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Aggregator.Addr) == "" {
		return fmt.Errorf("%w: aggregator.addr is required", ErrInvalidConfig)
	}
	if c.Aggregator.MaxQueued < 0 {
		return fmt.Errorf("%w: aggregator.max_queued must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.WorldModel.Addr) == "" {
		return fmt.Errorf("%w: world_model.addr is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.WorldModel.Origin) == "" {
		return fmt.Errorf("%w: world_model.origin is required", ErrInvalidConfig)
	}
	if c.Aggregator.KeepAlive < 0 || c.WorldModel.KeepAlive < 0 {
		return fmt.Errorf("%w: keepalive must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Logging converts the log section into a logging.Config for the runtime
// profile.
func (c LogConfig) Logging() logging.Config {
	out := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Level); ok {
		out.Level = lvl
	}
	out.Timestamp = c.Timestamp
	out.NoColor = c.NoColor
	out.File = logging.FileConfig{
		Path:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
	return out
}
