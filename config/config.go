// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/patra-app/matchrank/scoring"
)

// ConfigPathEnvVar points at a YAML config file
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix marks variables mapped onto config keys; "__" separates levels,
// e.g. MATCHRANK_STORE__DSN -> store.dsn
const EnvPrefix = "MATCHRANK_"

// DefaultConfigPaths are searched when CONFIG_PATH is unset
var DefaultConfigPaths = []string{"config.yaml", "/etc/matchrank/config.yaml"}

type Config struct {
	Server          ServerConfig          `koanf:"server"`
	Logging         LoggingConfig         `koanf:"logging"`
	Auth            AuthConfig            `koanf:"auth"`
	Store           StoreConfig           `koanf:"store"`
	Scoring         ScoringConfig         `koanf:"scoring"`
	Rating          RatingConfig          `koanf:"rating"`
	Interaction     InteractionConfig     `koanf:"interaction"`
	Recommend       RecommendConfig       `koanf:"recommend"`
	Embedding       EmbeddingConfig       `koanf:"embedding"`
	Personalization PersonalizationConfig `koanf:"personalization"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// RateLimit is requests per minute per client IP; 0 disables it
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

type AuthConfig struct {
	Enabled   bool   `koanf:"enabled"`
	JWTSecret string `koanf:"jwt_secret" validate:"required_if=Enabled true"`
}

type StoreConfig struct {
	// Driver is postgres or memory
	Driver   string `koanf:"driver" validate:"oneof=postgres memory"`
	DSN      string `koanf:"dsn" validate:"required_if=Driver postgres"`
	SeedFile string `koanf:"seed_file"`
	Migrate  bool   `koanf:"migrate"`

	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	BreakerThreshold uint32        `koanf:"breaker_threshold" validate:"gte=1"`
	BreakerOpenFor   time.Duration `koanf:"breaker_open_for" validate:"gt=0"`
}

type ScoringConfig struct {
	Weights        scoring.Weights `koanf:"weights"`
	AgeDivisor     float64         `koanf:"age_divisor" validate:"gt=0"`
	LocationPolicy string          `koanf:"location_policy" validate:"oneof=strict soft"`
}

type RatingConfig struct {
	K       float64 `koanf:"k" validate:"gt=0"`
	Initial float64 `koanf:"initial" validate:"gt=0"`
}

type InteractionConfig struct {
	LikeWeight      float64 `koanf:"like_weight" validate:"gte=0"`
	SuperlikeWeight float64 `koanf:"superlike_weight" validate:"gte=0"`
	ReshowRejects   bool    `koanf:"reshow_rejects"`
	LookbackDays    int     `koanf:"lookback_days" validate:"gte=0"`
}

type RecommendConfig struct {
	DefaultCount int `koanf:"default_count" validate:"gte=1"`
	MaxCount     int `koanf:"max_count" validate:"gte=1"`
}

type EmbeddingConfig struct {
	// Provider is hashing (local) or ollama
	Provider        string        `koanf:"provider" validate:"oneof=hashing ollama"`
	Model           string        `koanf:"model" validate:"required_if=Provider ollama"`
	BaseURL         string        `koanf:"base_url"`
	Dimensions      int           `koanf:"dimensions" validate:"gte=0"`
	CacheSize       int           `koanf:"cache_size" validate:"gte=0"`
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gte=0"`
}

type PersonalizationConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true"`
	// StatsDays is the default stats window
	StatsDays int `koanf:"stats_days" validate:"gte=1"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3001"},
			RateLimit:       300,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Driver:           "memory",
			Timeout:          5 * time.Second,
			BreakerThreshold: 5,
			BreakerOpenFor:   10 * time.Second,
		},
		Scoring: ScoringConfig{
			Weights:        scoring.DefaultWeights(),
			AgeDivisor:     scoring.DefaultAgeDivisor,
			LocationPolicy: string(scoring.LocationStrict),
		},
		Rating: RatingConfig{K: 32, Initial: 1200},
		Interaction: InteractionConfig{
			LikeWeight:      2.0,
			SuperlikeWeight: 3.0,
			LookbackDays:    365,
		},
		Recommend: RecommendConfig{DefaultCount: 10, MaxCount: 50},
		Embedding: EmbeddingConfig{
			Provider:        "hashing",
			Dimensions:      512,
			CacheSize:       10000,
			RefreshInterval: 15 * time.Minute,
		},
		Personalization: PersonalizationConfig{Path: "personalization.db", StatsDays: 30},
	}
}

// Default returns the built-in configuration
func Default() *Config { return defaultConfig() }

// Load builds the configuration: struct defaults, then the YAML file, then
// environment variables. The result is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSlice(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps environment variables onto config keys. Unrelated
// variables return "" and are ignored.
func envTransformFunc(key string) string {
	switch key {
	case "DATABASE_URL":
		return "store.dsn"
	case "JWT_SECRET":
		return "auth.jwt_secret"
	case "LOG_LEVEL":
		return "logging.level"
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(key, "__", "."))
}

func splitSlice(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return err
	}
	if c.Recommend.DefaultCount > c.Recommend.MaxCount {
		return fmt.Errorf("recommend.default_count %d exceeds recommend.max_count %d",
			c.Recommend.DefaultCount, c.Recommend.MaxCount)
	}
	return nil
}
