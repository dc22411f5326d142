// Package config loads normgraph settings.
//
// Sources are layered lowest to highest: built-in defaults, an optional
// YAML file, then NORMGRAPH_* environment variables. CLI flags are applied
// by the caller on top of the loaded Config.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/gbproject/normgraph/internal/entities"
)

// EnvPrefix prefixes every environment variable read by Load.
// NORMGRAPH_ENGINE_MAX_DEPTH maps to engine.max_depth.
const EnvPrefix = "NORMGRAPH_"

// Config holds every setting.
type Config struct {
	Engine EngineConfig `koanf:"engine"`
	Log    LogConfig    `koanf:"log"`
	Store  StoreConfig  `koanf:"store"`
}

// EngineConfig configures the normalization engine.
type EngineConfig struct {
	MaxDepth         int    `koanf:"max_depth"          validate:"min=1,max=65536"`
	AssignMissingIDs bool   `koanf:"assign_missing_ids"`
	Schema           string `koanf:"schema"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// StoreConfig configures the snapshot store.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxDepth: entities.DefaultMaxDepth,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: "normgraph.db",
		},
	}
}

// Options selects the sources Load reads.
type Options struct {
	// File is a YAML config file. Empty skips it.
	File string

	// Environ returns the environment as KEY=value pairs.
	// Nil reads the process environment.
	Environ func() []string
}

// Load builds a Config from defaults, the optional file and the
// environment, then validates it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if opts.File != "" {
		if err := loadFile(k, opts.File); err != nil {
			return nil, err
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFile merges the keys present in a YAML file over the defaults.
func loadFile(k *koanf.Koanf, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for key, value := range flatten("", raw) {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set %s from %s: %w", key, path, err)
		}
	}
	return nil
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flatten(key, nested) {
				out[fk] = fv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// transformEnv maps NORMGRAPH_ENGINE_MAX_DEPTH to engine.max_depth: the
// first segment after the prefix names the section, the rest the field.
func transformEnv(key, value string) (string, any) {
	s := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) < 2 {
		return "", nil
	}
	return parts[0] + "." + strings.Join(parts[1:], "_"), value
}
