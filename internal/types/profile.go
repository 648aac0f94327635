// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"fmt"
	"strings"
)

// Engine identifies the SQL server flavour a profile connects to.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
)

// ParseEngine converts a user supplied engine name. Empty means postgres.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql", "pg":
		return EnginePostgres, nil
	case "mysql", "mariadb":
		return EngineMySQL, nil
	default:
		return "", fmt.Errorf("unsupported engine %q (expected postgres or mysql)", s)
	}
}

// DefaultPort returns the server's well-known port.
func (e Engine) DefaultPort() int {
	if e == EngineMySQL {
		return 3306
	}
	return 5432
}

// ConnectionProfile describes how to reach a server. The core never mutates it.
type ConnectionProfile struct {
	ID           string `toml:"id" json:"id" mapstructure:"id"`
	Name         string `toml:"name" json:"name" mapstructure:"name"`
	Engine       Engine `toml:"engine" json:"engine" mapstructure:"engine"`
	Host         string `toml:"host" json:"host" mapstructure:"host"`
	Port         int    `toml:"port" json:"port" mapstructure:"port"`
	User         string `toml:"user" json:"user" mapstructure:"user"`
	Password     string `toml:"password,omitempty" json:"pass" mapstructure:"password"`
	SavePassword bool   `toml:"save_password" json:"savePass" mapstructure:"save_password"`
	SSLMode      string `toml:"ssl_mode,omitempty" json:"sslMode,omitempty" mapstructure:"ssl_mode"`
}

// EffectiveEngine returns the profile engine, defaulting to postgres.
func (p ConnectionProfile) EffectiveEngine() Engine {
	if p.Engine == "" {
		return EnginePostgres
	}
	return p.Engine
}

// EffectivePort returns the profile port, defaulting to the engine's port.
func (p ConnectionProfile) EffectivePort() int {
	if p.Port <= 0 {
		return p.EffectiveEngine().DefaultPort()
	}
	return p.Port
}
