// Package config loads clusterd's engine configuration from a YAML file,
// the minimal ambient slice cmd/clusterd needs: where to keep the BoltDB
// file, how many dispatcher workers to run, and the default action
// timeout. It deliberately does not parse a full driver/plugin config
// language — that belongs to the out-of-scope profile/policy plugin
// loader per spec.md §1.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/clusterd/pkg/log"
)

// EngineConfig holds everything New(cmd/clusterd) needs to stand up an
// Engine, mirroring the shape of warren's manager.Config + log.Config.
type EngineConfig struct {
	// DataDir is where the BoltDB file is created/opened.
	DataDir string `yaml:"data_dir"`
	// Workers is the dispatcher's concurrent-execution slot count.
	Workers int `yaml:"workers"`
	// DefaultActionTimeout is a default action timeout in seconds. It is
	// loaded but not passed to the engine, which gives a user action the
	// Timeout of its target cluster.
	DefaultActionTimeout int `yaml:"default_action_timeout_seconds"`
	// LockRetryInterval is a lock retry interval. It is loaded but not
	// passed to the engine, which retries a failed lock acquisition after
	// a fixed two seconds.
	LockRetryInterval time.Duration `yaml:"lock_retry_interval"`
	// TestMode is a switch for collapsing scheduler delays. It is loaded
	// but cmd/clusterd does not apply it to the engine's scheduler.
	TestMode bool `yaml:"test_mode"`

	Log LogConfig `yaml:"log"`
}

// LogConfig mirrors pkg/log.Config for YAML decoding; Init translates it.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration clusterd falls back on when no
// config file is given: a local ./data directory, four workers, a
// five-minute default timeout.
func Default() *EngineConfig {
	return &EngineConfig{
		DataDir:              "./data",
		Workers:              4,
		DefaultActionTimeout: 300,
		LockRetryInterval:    2 * time.Second,
		Log:                  LogConfig{Level: "info", JSON: false},
	}
}

// Load reads and parses an EngineConfig from path, filling any field the
// file omits from Default().
func Load(path string) (*EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LogLevel adapts Log.Level to pkg/log.Level, defaulting to Info on an
// unrecognized value.
func (c *EngineConfig) LogLevel() log.Level {
	switch c.Log.Level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
