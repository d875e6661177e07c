package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for environment variables read by NewEnvVarSource.
const EnvPrefix = "DEVOPS_"

// aliasEnvVars maps unprefixed environment variables kept for compatibility
// with existing deployments onto configuration keys.
var aliasEnvVars = map[string]string{
	"COOKIE_VALIDATION_KEY":       "request.cookie_validation_key",
	"YII_ENV":                     "app.env",
	"YII_DEBUG":                   "app.debug",
	"APP_PORT":                    "http.port",
	"OTEL_ENABLED":                "telemetry.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.otlp_endpoint",
}

// Source is one configuration layer.
type Source struct {
	Provider func(k *koanf.Koanf) koanf.Provider
	Parser   koanf.Parser
	Options  []koanf.Option
}

// NewJSONFileSource reads configuration from a JSON file.
func NewJSONFileSource(path string) *Source {
	return &Source{
		Provider: func(_ *koanf.Koanf) koanf.Provider {
			return file.Provider(path)
		},
		Parser: kjson.Parser(),
	}
}

// NewYAMLFileSource reads configuration from a YAML file.
func NewYAMLFileSource(path string) *Source {
	return &Source{
		Provider: func(_ *koanf.Koanf) koanf.Provider {
			return file.Provider(path)
		},
		Parser: kyaml.Parser(),
	}
}

// NewFileSource picks the parser from the file extension: .yaml and .yml are
// read as YAML, anything else as JSON.
func NewFileSource(path string) *Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLFileSource(path)
	default:
		return NewJSONFileSource(path)
	}
}

// NewEnvVarSource reads DEVOPS_ prefixed variables. A double underscore
// separates nested keys, e.g. DEVOPS_HEALTH__PROBE_TIMEOUT.
func NewEnvVarSource() *Source {
	return &Source{
		Provider: func(_ *koanf.Koanf) koanf.Provider {
			return env.Provider(EnvPrefix, ".", func(s string) string {
				s = strings.TrimPrefix(s, EnvPrefix)
				s = strings.ToLower(s)
				return strings.ReplaceAll(s, "__", ".")
			})
		},
	}
}

// NewAliasEnvVarSource reads the unprefixed compatibility variables.
func NewAliasEnvVarSource() *Source {
	return &Source{
		Provider: func(_ *koanf.Koanf) koanf.Provider {
			return env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
				target, ok := aliasEnvVars[key]
				if !ok || value == "" {
					return "", nil
				}
				if target == "app.debug" {
					return target, truthy(value)
				}
				return target, value
			})
		},
	}
}

// truthy reads a YII_DEBUG style flag: any non-empty value except "0" and
// "false" is true.
func truthy(value string) bool {
	return value != "0" && !strings.EqualFold(value, "false")
}

// NewPFlagSource reads flags that were explicitly set on the command line.
func NewPFlagSource(flagSet *pflag.FlagSet) *Source {
	return &Source{
		Provider: func(k *koanf.Koanf) koanf.Provider {
			return posflag.ProviderWithFlag(flagSet, ".", k, func(f *pflag.Flag) (string, interface{}) {
				key := strings.ReplaceAll(f.Name, "-", "_")
				return key, posflag.FlagVal(flagSet, f)
			})
		},
	}
}

// NewStructSource loads a Config value as a layer. Zero fields are omitted
// so they do not override earlier layers.
func NewStructSource(cfg Config) (*Source, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to json: %w", err)
	}

	return &Source{
		Provider: func(_ *koanf.Koanf) koanf.Provider {
			return rawbytes.Provider(raw)
		},
		Parser: kjson.Parser(),
	}, nil
}

// Load merges the defaults with each source in order, later sources taking
// precedence, and validates the result.
func Load(sources ...*Source) (Config, error) {
	k := koanf.New(".")

	defaults, err := NewStructSource(DefaultConfig())
	if err != nil {
		return Config{}, err
	}

	for _, source := range append([]*Source{defaults}, sources...) {
		if err := k.Load(source.Provider(k), source.Parser, source.Options...); err != nil {
			return Config{}, fmt.Errorf("failed to load config source: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
