package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"raise-service/internal/assessment"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Assessment Assessment `yaml:"assessment"`
}

// Assessment holds the self-perception thresholds. Omitted fields keep the
// scoring defaults; an explicit 0 is honoured.
type Assessment struct {
	OverconfidentSelf     *int64 `yaml:"overconfident_self"`
	OverconfidentBelow    *int   `yaml:"overconfident_below"`
	UnderconfidentSelf    *int64 `yaml:"underconfident_self"`
	UnderconfidentAtLeast *int   `yaml:"underconfident_at_least"`
}

// Thresholds merges the configured values over the scoring defaults.
func (a Assessment) Thresholds() assessment.Thresholds {
	t := assessment.DefaultThresholds()
	if a.OverconfidentSelf != nil {
		t.OverconfidentSelf = *a.OverconfidentSelf
	}
	if a.OverconfidentBelow != nil {
		t.OverconfidentBelow = *a.OverconfidentBelow
	}
	if a.UnderconfidentSelf != nil {
		t.UnderconfidentSelf = *a.UnderconfidentSelf
	}
	if a.UnderconfidentAtLeast != nil {
		t.UnderconfidentAtLeast = *a.UnderconfidentAtLeast
	}
	return t
}

// LoadEnv reads a .env file into the process environment if one exists.
func LoadEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields defaults; malformed YAML is an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	override(&cfg.Server.Port, "PORT")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	return cfg, nil
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
