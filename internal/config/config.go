// Package config loads the simulator's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rsned/craftqueue/internal/crafting/queue"
	"github.com/rsned/craftqueue/pkg/crafting"
)

// Config is the top-level configuration file.
type Config struct {
	Database      string        `yaml:"database"`
	RecipesFile   string        `yaml:"recipes_file"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	InputPolicy   string        `yaml:"input_policy"`
	Listen        string        `yaml:"listen"`

	Sinks  SinksConfig   `yaml:"sinks"`
	Actors []ActorConfig `yaml:"actors"`
}

// SinksConfig selects where craft events go.
type SinksConfig struct {
	Log      bool   `yaml:"log"`
	Database bool   `yaml:"database"`
	EventDir string `yaml:"event_dir"`
}

// ActorConfig seeds one actor at startup.
type ActorConfig struct {
	ID       string           `yaml:"id"`
	Starting map[string]int64 `yaml:"starting"`
	Queue    []string         `yaml:"queue"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:      "data/craftqueue.db",
		TickInterval:  time.Second,
		FrameInterval: 100 * time.Millisecond,
		InputPolicy:   "consume",
		Sinks: SinksConfig{
			Log:      true,
			Database: true,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %s", c.FrameInterval)
	}
	if _, err := queue.ParseInputPolicy(c.InputPolicy); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Actors))
	for _, a := range c.Actors {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("actor with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate actor %q", a.ID)
		}
		seen[a.ID] = true
		for kind, amount := range a.Starting {
			if _, err := crafting.ParseResourceKind(kind); err != nil {
				return fmt.Errorf("actor %s: %w", a.ID, err)
			}
			if amount < 0 {
				return fmt.Errorf("actor %s: negative starting %s", a.ID, kind)
			}
		}
	}
	return nil
}

// Policy returns the parsed input policy.
func (c Config) Policy() queue.InputPolicy {
	p, _ := queue.ParseInputPolicy(c.InputPolicy)
	return p
}
