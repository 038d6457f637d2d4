// Package config resolves service settings from defaults, configs/config.yml,
// IMELT_* environment variables and bound CLI flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"imelt/internal/logger"

	"github.com/spf13/viper"
)

const envPrefix = "IMELT"

// Bounds for tunables.
const (
	minTick      = 100 * time.Millisecond
	maxTick      = 10 * time.Second
	// maxAITimeout stays below the API server's 10s write timeout so the fallback reply still goes out.
	maxAITimeout = 8 * time.Second
)

type Config struct {
	Port        string
	MetricsPort string
	LogLevel    string
	DBPath      string
	Simulation  SimulationConfig
	AI          AIConfig
}

type SimulationConfig struct {
	Tick         time.Duration
	InsightEvery int
	Autostart    AutostartConfig
}

// AutostartConfig starts one demo heat at boot so the dashboard has data immediately.
type AutostartConfig struct {
	Enabled bool
	Seed    int64
	HeatID  int
}

type AIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether an AI completion backend is configured.
func (c AIConfig) Enabled() bool { return c.APIKey != "" }

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("metrics_port", "9090")
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("db.path", "imelt.db")
	v.SetDefault("simulation.tick", "2s")
	v.SetDefault("simulation.insight_every", 5)
	v.SetDefault("simulation.autostart.enabled", true)
	v.SetDefault("simulation.autostart.seed", 42)
	v.SetDefault("simulation.autostart.heat_id", 93378)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", "8s")
}

// NewViper returns a viper instance with defaults, the config search path and env binding set up.
// dir is the directory holding config.yml; empty means "configs".
func NewViper(dir string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if dir == "" {
		dir = "configs"
	}
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads config.yml if present. A missing file is not an error.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load converts v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:        v.GetString("port"),
		MetricsPort: v.GetString("metrics_port"),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		DBPath:      v.GetString("db.path"),
		Simulation: SimulationConfig{
			Tick:         v.GetDuration("simulation.tick"),
			InsightEvery: v.GetInt("simulation.insight_every"),
			Autostart: AutostartConfig{
				Enabled: v.GetBool("simulation.autostart.enabled"),
				Seed:    v.GetInt64("simulation.autostart.seed"),
				HeatID:  v.GetInt("simulation.autostart.heat_id"),
			},
		},
		AI: AIConfig{
			APIKey:  v.GetString("ai.api_key"),
			Model:   v.GetString("ai.model"),
			Timeout: v.GetDuration("ai.timeout"),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("config: port must not be empty")
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("config: unknown log.level %q", c.LogLevel)
	}
	if c.Simulation.Tick <= 0 {
		return fmt.Errorf("config: simulation.tick must be positive, got %s", c.Simulation.Tick)
	}
	c.Simulation.Tick = clampDuration(c.Simulation.Tick, minTick, maxTick)
	if c.Simulation.InsightEvery < 0 {
		return fmt.Errorf("config: simulation.insight_every must be >= 0, got %d", c.Simulation.InsightEvery)
	}
	if c.Simulation.Autostart.Enabled && c.Simulation.Autostart.HeatID <= 0 {
		return fmt.Errorf("config: simulation.autostart.heat_id must be positive, got %d", c.Simulation.Autostart.HeatID)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("config: ai.timeout must be positive, got %s", c.AI.Timeout)
	}
	c.AI.Timeout = clampDuration(c.AI.Timeout, time.Second, maxAITimeout)
	return nil
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
