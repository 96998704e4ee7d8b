// Package config loads statedict CLI settings from flags, environment,
// .env files and an optional YAML config file.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "STATEDICT"

// Config keys.
const (
	KeyMap          = "map"
	KeyExclude      = "exclude"
	KeyStrict       = "strict"
	KeyKeepUnmapped = "keep_unmapped"
	KeyOutput       = "output"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Config holds the resolved CLI configuration.
type Config struct {
	// NameMap renames checkpoint entries, source name -> model name.
	NameMap map[string]string

	// Exclude lists substrings of model names to skip.
	Exclude []string

	Strict       bool
	KeepUnmapped bool

	// Output is the render format: table, json or yaml.
	Output string

	LogLevel  string
	LogFormat string

	// ConfigFile is the config file actually read, if any.
	ConfigFile string
}

// Load resolves configuration in order of precedence:
// 1. Command-line flags bound to v
// 2. Environment variables (STATEDICT_*)
// 3. .env and .env.local files
// 4. Config file (configFile, or .statedict.yaml in $HOME or the working directory)
// 5. Defaults
func Load(v *viper.Viper, configFile string) (*Config, error) {
	loadEnvFiles()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyOutput, OutputTable)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".statedict")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	nameMap, err := ParseNameMap(v.GetStringSlice(KeyMap))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NameMap:      nameMap,
		Exclude:      v.GetStringSlice(KeyExclude),
		Strict:       v.GetBool(KeyStrict),
		KeepUnmapped: v.GetBool(KeyKeepUnmapped),
		Output:       strings.ToLower(v.GetString(KeyOutput)),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		ConfigFile:   v.ConfigFileUsed(),
	}

	switch cfg.Output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return nil, errors.Errorf("unsupported output format %q (expected table, json or yaml)", cfg.Output)
	}

	return cfg, nil
}

// ParseNameMap parses "old=new" pairs. Names are kept verbatim; a list is
// used instead of a YAML mapping because viper lowercases mapping keys.
func ParseNameMap(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		if !ok || from == "" || to == "" {
			return nil, errors.Errorf("invalid name mapping %q (expected old=new)", pair)
		}
		m[from] = to
	}
	return m, nil
}

// loadEnvFiles loads .env then .env.local. Variables already set win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}
