// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version    int       `toml:"version"`
	WatchPaths []string  `toml:"watch_paths"`
	Exclude    Exclude   `toml:"exclude"`
	Watch      Watch     `toml:"watch"`
	Compile    Compile   `toml:"compile"`
	Projects   Projects  `toml:"projects"`
	Status     Status    `toml:"status"`
	Telemetry  Telemetry `toml:"telemetry"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Compile struct {
	// BuildOutputDirs extends the built-in generated-output directory names
	// (build, target, .gradle, out, bin).
	BuildOutputDirs []string `toml:"build_output_dirs"`
	// Rate bounds compile triggers per second; zero means unbounded.
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

type Projects struct {
	// Roots pre-registers project roots; roots discovered from build
	// descriptors under the watch paths are added on top.
	Roots []string `toml:"roots"`
	// Classpaths maps a project root to its resolved classpath entries.
	// Entries here skip external resolution at startup.
	Classpaths map[string][]string `toml:"classpaths"`
}

type Status struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

type Telemetry struct {
	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes and validates a TOML document.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateCompile(&cfg); err != nil {
		return nil, err
	}
	if err := validateProjects(&cfg); err != nil {
		return nil, err
	}
	if err := validateStatus(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"."}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if cfg.Compile.Rate > 0 && cfg.Compile.Burst <= 0 {
		cfg.Compile.Burst = 1
	}

	if strings.TrimSpace(cfg.Status.Address) == "" {
		cfg.Status.Address = "127.0.0.1:9180"
	}

	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = "gls"
	}

	// Project paths are matched against absolute, clean file ids at runtime;
	// a trailing slash or relative form in the config must not break the
	// lookup.
	for i, root := range cfg.Projects.Roots {
		cfg.Projects.Roots[i] = normalizeProjectPath(root)
	}
	if len(cfg.Projects.Classpaths) > 0 {
		normalized := make(map[string][]string, len(cfg.Projects.Classpaths))
		for root, entries := range cfg.Projects.Classpaths {
			normalized[normalizeProjectPath(root)] = entries
		}
		cfg.Projects.Classpaths = normalized
	}
}

func normalizeProjectPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validateCompile(cfg *Config) error {
	if cfg.Compile.Rate < 0 {
		return fmt.Errorf("compile.rate must not be negative, got %v", cfg.Compile.Rate)
	}
	for i, dir := range cfg.Compile.BuildOutputDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			return fmt.Errorf("compile.build_output_dirs[%d] must not be empty", i)
		}
		if strings.ContainsAny(trimmed, "/\\") {
			return fmt.Errorf("compile.build_output_dirs[%d] must be a directory name, not a path: %q", i, dir)
		}
	}
	return nil
}

func validateProjects(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Projects.Roots))
	for i, root := range cfg.Projects.Roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			return fmt.Errorf("projects.roots[%d] must not be empty", i)
		}
		if seen[trimmed] {
			return fmt.Errorf("duplicate project root %q", trimmed)
		}
		seen[trimmed] = true
	}
	for root := range cfg.Projects.Classpaths {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("projects.classpaths key must not be empty")
		}
	}
	return nil
}

func validateStatus(cfg *Config) error {
	if !cfg.Status.Enabled {
		return nil
	}
	addr := strings.TrimSpace(cfg.Status.Address)
	if addr == "" {
		return fmt.Errorf("status.address must not be empty when status.enabled is true")
	}
	if !strings.Contains(addr, ":") {
		return fmt.Errorf("status.address must be host:port, got %q", addr)
	}
	return nil
}
