// Package config resolves recordmirror settings. Sources are applied in
// order, later ones winning: built-in defaults, an optional YAML file, a .env
// file, then RECORDMIRROR_* environment variables. Command-line flags are
// applied by the caller before Validate.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/agentworkforce/recordmirror/internal/gateway"
	"github.com/agentworkforce/recordmirror/internal/mirror"
	"github.com/agentworkforce/recordmirror/internal/snapshot"
)

const (
	EnvBaseURL       = "RECORDMIRROR_BASE_URL"
	EnvSnapshotDSN   = "RECORDMIRROR_SNAPSHOT_DSN"
	EnvSnapshotName  = "RECORDMIRROR_SNAPSHOT_NAME"
	EnvSeedBoundary  = "RECORDMIRROR_SEED_BOUNDARY"
	EnvPageSize      = "RECORDMIRROR_PAGE_SIZE"
	EnvTimeout       = "RECORDMIRROR_TIMEOUT"
	EnvAddr          = "RECORDMIRROR_ADDR"
	EnvWatchSnapshot = "RECORDMIRROR_WATCH_SNAPSHOT"

	DefaultSnapshotDSN = ".recordmirror/snapshot.json"
	DefaultAddr        = ":8080"
	DefaultTimeout     = 15 * time.Second
)

type Config struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	SnapshotDSN   string        `yaml:"snapshot_dsn" validate:"required"`
	SnapshotName  string        `yaml:"snapshot_name" validate:"required"`
	SeedBoundary  int           `yaml:"seed_boundary" validate:"gte=1"`
	PageSize      int           `yaml:"page_size" validate:"gte=1"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	Addr          string        `yaml:"addr" validate:"required"`
	WatchSnapshot bool          `yaml:"watch_snapshot"`
}

func Default() Config {
	return Config{
		BaseURL:       gateway.DefaultBaseURL,
		SnapshotDSN:   DefaultSnapshotDSN,
		SnapshotName:  snapshot.DefaultName,
		SeedBoundary:  mirror.DefaultSeedBoundary,
		PageSize:      mirror.DefaultPageSize,
		Timeout:       DefaultTimeout,
		Addr:          DefaultAddr,
		WatchSnapshot: true,
	}
}

// Load resolves the configuration from file (optional, must exist when
// named), dotEnv (optional, a missing file is ignored) and the environment.
func Load(file, dotEnv string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", file, err)
		}
	}
	if strings.TrimSpace(dotEnv) != "" {
		if err := godotenv.Load(dotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotEnv, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = envOrDefault(EnvBaseURL, c.BaseURL)
	c.SnapshotDSN = envOrDefault(EnvSnapshotDSN, c.SnapshotDSN)
	c.SnapshotName = envOrDefault(EnvSnapshotName, c.SnapshotName)
	c.SeedBoundary = intEnv(EnvSeedBoundary, c.SeedBoundary)
	c.PageSize = intEnv(EnvPageSize, c.PageSize)
	c.Timeout = durationEnv(EnvTimeout, c.Timeout)
	c.Addr = envOrDefault(EnvAddr, c.Addr)
	c.WatchSnapshot = boolEnv(EnvWatchSnapshot, c.WatchSnapshot)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

func (c Config) Validate() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}

func intEnv(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func boolEnv(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %t", name, raw, fallback)
		return fallback
	}
	return value
}
