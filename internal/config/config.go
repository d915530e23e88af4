// Package config loads service configuration from an optional YAML file and
// applies environment overrides on top. Environment always wins so deploys
// can tweak a setting without shipping a new file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`

	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`

	Optimizer Optimizer `yaml:"optimizer"`
}

// Optimizer holds defaults applied when an optimize request omits a field.
type Optimizer struct {
	VehicleCapacity float64 `yaml:"vehicleCapacity"`
	MaxVehicles     int     `yaml:"maxVehicles"`
	UnitRate        float64 `yaml:"unitRate"`
	Workers         int     `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:      "8080",
		RateRPS:   50,
		RateBurst: 100,
		Optimizer: Optimizer{
			VehicleCapacity: 20,
			MaxVehicles:     10,
			UnitRate:        1,
			Workers:         4,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file named
// by CONFIG_FILE (if set), then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", file, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", file, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateBurst = n
		}
	}
	if v := os.Getenv("VEHICLE_CAPACITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Optimizer.VehicleCapacity = f
		}
	}
	if v := os.Getenv("UNIT_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Optimizer.UnitRate = f
		}
	}
	if v := os.Getenv("MAX_VEHICLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Optimizer.MaxVehicles = n
		}
	}
	if v := os.Getenv("OPTIMIZE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Optimizer.Workers = n
		}
	}
}

func (c Config) validate() error {
	if c.Optimizer.VehicleCapacity <= 0 {
		return fmt.Errorf("config: vehicleCapacity must be positive, got %v", c.Optimizer.VehicleCapacity)
	}
	if c.Optimizer.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Optimizer.Workers)
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("config: rate limit must be positive, got rps=%v burst=%d", c.RateRPS, c.RateBurst)
	}
	return nil
}
