/*
Package config loads keybarrier settings from YAML or JSON.

# Overview

Config wraps a decoded document and exposes typed accessors that fall back to
a default when a key is missing or holds the wrong type:

	cfg := config.New(map[string]any{
	    "stripes":      1024,
	    "lock_timeout": "30s",
	})

	stripes := cfg.Int("stripes", 32768)                  // 1024
	timeout := cfg.Duration("lock_timeout", time.Minute)  // 30s
	tracing := cfg.Bool("tracing", false)                 // false

Nested mappings are reached with Sub:

	callers := cfg.Sub("workload").Int("callers", 100)

# Settings

Settings is the typed form used by the keybarrier command:

	s, err := config.LoadSettings("keybarrier.yaml")
	if err != nil {
	    return err
	}
	logger, err := s.Logger(os.Stderr)
	if err != nil {
	    return err
	}
	b := keybarrier.New[string](s.BarrierOptions(logger)...)

Fields absent from the file keep the values from DefaultSettings.

# Type Coercion

Duration accepts a time.ParseDuration string, a time.Duration, or a number of
seconds. Int accepts floats only when they have no fractional part, since JSON
decodes every number as float64.

# Thread Safety

Config is safe for concurrent reads. It never modifies the wrapped map.
*/
package config
