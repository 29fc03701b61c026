//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the user-facing configuration of a jqual session and the engine constants
// that are not meant to be tuned by users.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Inference modes accepted by Config.Mode.
const (
	// ModeFull lets call-argument assertions and field reads use annotations inferred in previous
	// rounds, in addition to declared ones.
	ModeFull = "full"
	// ModeDeclared restricts call-argument assertions and field reads to declared annotations and
	// runs a single round.
	ModeDeclared = "declared"
)

// Config is the configuration of a jqual session. The zero value is not valid; use Default.
type Config struct {
	// Workers is the number of methods analyzed concurrently. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// Rounds is the maximum number of whole-session rounds.
	Rounds int `yaml:"rounds"`
	// Mode is either ModeFull or ModeDeclared.
	Mode string `yaml:"mode"`
	// SupertypeDepth caps the breadth-first supertype walk of the mutability catalog fallback.
	SupertypeDepth int `yaml:"supertypeDepth"`
	// CatalogPath optionally points to a YAML mutability catalog replacing the built-in one.
	CatalogPath string `yaml:"catalog"`
	// IncludeClasses is a list of internal class name prefixes (e.g., "com/acme/") whose annotations
	// are reported. Empty means all classes.
	IncludeClasses []string `yaml:"includeClasses"`
	// ExcludeClasses is a list of internal class name prefixes whose annotations are never reported.
	// It takes precedence over IncludeClasses.
	ExcludeClasses []string `yaml:"excludeClasses"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Rounds:         DefaultRounds,
		Mode:           ModeFull,
		SupertypeDepth: DefaultSupertypeDepth,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads a YAML configuration from r on top of the defaults.
func Load(r io.Reader) (*Config, error) {
	conf := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Rounds < 1 {
		errs = append(errs, fmt.Errorf("rounds must be at least 1, got %d", c.Rounds))
	}
	if c.Mode != ModeFull && c.Mode != ModeDeclared {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeFull, ModeDeclared, c.Mode))
	}
	if c.SupertypeDepth < 1 {
		errs = append(errs, fmt.Errorf("supertypeDepth must be at least 1, got %d", c.SupertypeDepth))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsClassInScope returns true if annotations on members of the given internal class name should be
// reported.
func (c *Config) IsClassInScope(className string) bool {
	for _, e := range c.ExcludeClasses {
		if strings.HasPrefix(className, e) {
			return false
		}
	}
	if len(c.IncludeClasses) == 0 {
		return true
	}
	for _, i := range c.IncludeClasses {
		if strings.HasPrefix(className, i) {
			return true
		}
	}
	return false
}

// ParseLevel converts a textual log level to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
