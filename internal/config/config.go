// Package config provides configuration structures and loading for gofanout.
package config

import (
	"sort"
	"time"

	"github.com/dbsmedya/gofanout/internal/types"
)

// Config represents the complete application configuration.
type Config struct {
	Connections map[string]ConnectionConfig `yaml:"connections" mapstructure:"connections"`
	Execution   ExecutionConfig             `yaml:"execution" mapstructure:"execution"`
	Storage     StorageConfig               `yaml:"storage" mapstructure:"storage"`
	Logging     LoggingConfig               `yaml:"logging" mapstructure:"logging"`
}

// ConnectionConfig is an inline connection profile keyed by its name.
type ConnectionConfig struct {
	Engine   string `yaml:"engine" mapstructure:"engine"` // postgres or mysql
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
}

// ExecutionConfig holds defaults for the run command.
type ExecutionConfig struct {
	StopOnError      bool          `yaml:"stop_on_error" mapstructure:"stop_on_error"`
	Save             string        `yaml:"save" mapstructure:"save"` // none, separate, single
	OutputDir        string        `yaml:"output_dir" mapstructure:"output_dir"`
	StatementTimeout time.Duration `yaml:"statement_timeout" mapstructure:"statement_timeout"`
	ConnectTimeout   int           `yaml:"connect_timeout" mapstructure:"connect_timeout"` // seconds
}

// StorageConfig locates the profile and history stores.
type StorageConfig struct {
	ProfilesFile string `yaml:"profiles_file" mapstructure:"profiles_file"`
	HistoryFile  string `yaml:"history_file" mapstructure:"history_file"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Connections: map[string]ConnectionConfig{},
		Execution: ExecutionConfig{
			StopOnError:    false,
			Save:           "none",
			ConnectTimeout: 10,
		},
		Storage: StorageConfig{
			ProfilesFile: "connections.toml",
			HistoryFile:  "history.sqlite",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Profile returns the inline connection profile with the given name.
func (c *Config) Profile(name string) (types.ConnectionProfile, bool) {
	cc, ok := c.Connections[name]
	if !ok {
		return types.ConnectionProfile{}, false
	}
	engine, err := types.ParseEngine(cc.Engine)
	if err != nil {
		engine = types.Engine(cc.Engine)
	}
	return types.ConnectionProfile{
		ID:       "config:" + name,
		Name:     name,
		Engine:   engine,
		Host:     cc.Host,
		Port:     cc.Port,
		User:     cc.User,
		Password: cc.Password,
		SSLMode:  cc.SSLMode,
	}, true
}

// ListConnections returns the inline connection names, sorted.
func (c *Config) ListConnections() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
