// Package config loads service configuration from, in rising priority:
// built-in defaults, a YAML file, a .env file and the environment.
//
// Environment keys are <SERVICE>_<PATH> with "_" standing for ".", so
// STOREFRONT_SERVER_PORT sets server.port.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Validator interface {
	Validate() error
}

type Source struct {
	Service  string
	File     string
	EnvFile  string
	Defaults map[string]any
}

// Load fills a T from src and validates it. A missing YAML or .env file is
// not an error.
func Load[T Validator](src Source) (T, error) {
	var cfg T
	k := koanf.New(".")

	prefix := strings.ToUpper(src.Service) + "_"
	transform := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(prefix))
		return strings.ReplaceAll(key, "_", ".")
	}

	if src.File == "" {
		src.File = getenv(prefix+"CONFIG", "config.yaml")
	}
	if src.EnvFile == "" {
		src.EnvFile = ".env"
	}

	if len(src.Defaults) > 0 {
		if err := k.Load(confmap.Provider(src.Defaults, "."), nil); err != nil {
			return cfg, fmt.Errorf("load defaults: %w", err)
		}
	}

	if err := k.Load(file.Provider(src.File), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: error loading YAML config file '%s': %v", src.File, err)
	}

	if envFileMap, err := godotenv.Read(src.EnvFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if strings.HasPrefix(strings.ToUpper(key), prefix) {
				envMap[transform(key)] = value
			}
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	if err := k.Load(env.Provider(prefix, ".", transform), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	// List values arrive from env and .env as "a,b,c".
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type HTTPConfig struct {
	Port    int `koanf:"port"`
	Timeout struct {
		Read       time.Duration `koanf:"read"`
		Write      time.Duration `koanf:"write"`
		Idle       time.Duration `koanf:"idle"`
		ReadHeader time.Duration `koanf:"readheader"`
		Shutdown   time.Duration `koanf:"shutdown"`
	} `koanf:"timeout"`
}

func (c HTTPConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", c.Port)
	}
	if c.Timeout.Read < 0 || c.Timeout.Write < 0 || c.Timeout.Idle < 0 {
		return errors.New("HTTP server timeouts must not be negative")
	}
	return nil
}

func (c HTTPConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
}

// DatabaseConfig selects Postgres when URL is set and in-memory storage
// otherwise.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

func (c DatabaseConfig) Validate() error {
	if c.URL == "" {
		return nil
	}
	if !strings.HasPrefix(c.URL, "postgres://") && !strings.HasPrefix(c.URL, "postgresql://") {
		return fmt.Errorf("database URL must start with 'postgres://': %s", maskURL(c.URL))
	}
	return nil
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	if _, host, ok := strings.Cut(url, "@"); ok {
		return "****@" + host
	}
	return "****"
}

func commonDefaults(port int) map[string]any {
	return map[string]any{
		"log.level":                 "info",
		"server.port":               port,
		"server.timeout.read":       10 * time.Second,
		"server.timeout.write":      15 * time.Second,
		"server.timeout.idle":       60 * time.Second,
		"server.timeout.readheader": 5 * time.Second,
		"server.timeout.shutdown":   10 * time.Second,
		"metrics.enabled":           false,
	}
}

func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
