package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/keybarrier/pkg/keybarrier"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/stripe"
	"github.com/randalmurphal/keybarrier/pkg/keybarrier/workload"
)

// Settings is the typed form of a keybarrier configuration file.
//
//	stripes: 32768
//	lock_timeout: 30s
//	metrics: false
//	tracing: false
//	log_level: info
//	log_format: text
//	store: reports.db
//	workload:
//	  callers: 100
//	  keys: 10
//	  work: 5s
//	  failure_rate: 0
//	  concurrency: 0
//	  attempts: 1
//	  seed: 1
type Settings struct {
	Stripes     int
	LockTimeout time.Duration
	Metrics     bool
	Tracing     bool
	LogLevel    string
	LogFormat   string
	Store       string
	Workload    workload.Config
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Stripes:   stripe.DefaultStripes,
		LogLevel:  "info",
		LogFormat: "text",
		Store:     "memory",
		Workload:  workload.DefaultConfig(),
	}
}

// SettingsFrom decodes cfg on top of DefaultSettings.
// Missing or malformed values keep their defaults.
func SettingsFrom(cfg Config) Settings {
	s := DefaultSettings()
	s.Stripes = cfg.Int("stripes", s.Stripes)
	s.LockTimeout = cfg.Duration("lock_timeout", s.LockTimeout)
	s.Metrics = cfg.Bool("metrics", s.Metrics)
	s.Tracing = cfg.Bool("tracing", s.Tracing)
	s.LogLevel = cfg.String("log_level", s.LogLevel)
	s.LogFormat = cfg.String("log_format", s.LogFormat)
	s.Store = cfg.String("store", s.Store)

	w := cfg.Sub("workload")
	s.Workload.Callers = w.Int("callers", s.Workload.Callers)
	s.Workload.Keys = w.Int("keys", s.Workload.Keys)
	s.Workload.Work = w.Duration("work", s.Workload.Work)
	s.Workload.FailureRate = w.Float("failure_rate", s.Workload.FailureRate)
	s.Workload.Concurrency = w.Int("concurrency", s.Workload.Concurrency)
	s.Workload.Attempts = w.Int("attempts", s.Workload.Attempts)
	s.Workload.Seed = w.Uint64("seed", s.Workload.Seed)
	return s
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if s.Stripes < 1 {
		return fmt.Errorf("stripes must be positive, got %d", s.Stripes)
	}
	if s.LockTimeout < 0 {
		return errors.New("lock_timeout cannot be negative")
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", s.LogFormat)
	}
	if err := s.Workload.Validate(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	return nil
}

// BarrierOptions converts the settings into options for a string-keyed
// barrier. Keys are hashed with stripe.StringHasher.
// logger may be nil, in which case the barrier keeps its default.
func (s Settings) BarrierOptions(logger *slog.Logger) []keybarrier.Option {
	opts := []keybarrier.Option{
		keybarrier.WithStripes(s.Stripes),
		keybarrier.WithHasher(stripe.StringHasher),
		keybarrier.WithMetrics(s.Metrics),
		keybarrier.WithTracing(s.Tracing),
	}
	if s.LockTimeout > 0 {
		opts = append(opts, keybarrier.WithLockTimeout(s.LockTimeout))
	}
	if logger != nil {
		opts = append(opts, keybarrier.WithLogger(logger))
	}
	return opts
}

// Logger builds a slog logger writing to w in the configured format and level.
func (s Settings) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
