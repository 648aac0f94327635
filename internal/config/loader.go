package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/viper"
)

// Load reads a YAML config file. Missing keys keep their defaults and
// $VAR or ${VAR} references in string fields are expanded.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		cfg.expandEnv()
		return cfg, nil
	}
	return Load(path)
}

// LoadFromViper decodes an already populated Viper instance over the
// defaults.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Connections == nil {
		cfg.Connections = map[string]ConnectionConfig{}
	}
	cfg.expandEnv()
	return cfg, nil
}

func (c *Config) expandEnv() {
	for name, cc := range c.Connections {
		for _, s := range []*string{&cc.Host, &cc.User, &cc.Password} {
			*s = expandEnvVar(*s)
		}
		c.Connections[name] = cc
	}
	for _, s := range []*string{
		&c.Execution.OutputDir,
		&c.Storage.ProfilesFile,
		&c.Storage.HistoryFile,
		&c.Logging.Output,
	} {
		*s = expandEnvVar(*s)
	}
}

var envRef = regexp.MustCompile(`\$(?:\{([^}]+)\}|([A-Za-z_][A-Za-z0-9_]*))`)

// expandEnvVar substitutes set variables and leaves unset references as
// written, unlike os.ExpandEnv.
func expandEnvVar(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return ref
	})
}

// Overrides carries command-line values that win over the file. Empty
// strings and a nil StopOnError leave the file setting alone.
type Overrides struct {
	LogLevel    string
	LogFormat   string
	Save        string
	OutputDir   string
	StopOnError *bool
}

// ApplyOverrides merges non-zero override values into the config.
func (c *Config) ApplyOverrides(o Overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Logging.Level, o.LogLevel)
	set(&c.Logging.Format, o.LogFormat)
	set(&c.Execution.Save, o.Save)
	set(&c.Execution.OutputDir, o.OutputDir)
	if o.StopOnError != nil {
		c.Execution.StopOnError = *o.StopOnError
	}
}
