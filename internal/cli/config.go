package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration for the serve command.
type Config struct {
	Addr  string      `yaml:"addr"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables the composed-expression cache when Addr is set.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// Duration wraps time.Duration with YAML support for the "5m" string form.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns the serve defaults: local HTTP, no cache.
func DefaultConfig() Config {
	return Config{Addr: ":8080"}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
