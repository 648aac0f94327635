package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dbsmedya/gofanout/internal/types"
)

// ValidationError names one invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *ValidationErrors) require(ok bool, field, format string, args ...interface{}) {
	if !ok {
		*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

var (
	logLevels  = []string{"", "debug", "info", "warn", "error"}
	logFormats = []string{"", "json", "text"}
)

// Validate reports all invalid fields at once rather than stopping at the
// first. Connections are checked in name order.
func (c *Config) Validate() error {
	var errs ValidationErrors

	for _, name := range c.ListConnections() {
		cc := c.Connections[name]
		field := "connections." + name + "."

		_, err := types.ParseEngine(cc.Engine)
		errs.require(err == nil, field+"engine", "engine must be 'postgres' or 'mysql'")
		errs.require(cc.Host != "", field+"host", "host is required")
		// 0 selects the engine default port
		errs.require(cc.Port >= 0 && cc.Port <= 65535, field+"port", "port must be between 1 and 65535")
		errs.require(cc.User != "", field+"user", "user is required")
	}

	ex := c.Execution
	_, err := types.ParseSavePolicy(ex.Save)
	errs.require(err == nil, "execution.save", "save must be 'none', 'separate', or 'single', got %q", ex.Save)
	errs.require(ex.StatementTimeout >= 0, "execution.statement_timeout", "statement_timeout cannot be negative")
	errs.require(ex.ConnectTimeout >= 0, "execution.connect_timeout", "connect_timeout cannot be negative")

	errs.require(c.Storage.ProfilesFile != "", "storage.profiles_file", "profiles_file is required")
	errs.require(c.Storage.HistoryFile != "", "storage.history_file", "history_file is required")

	errs.require(slices.Contains(logLevels, c.Logging.Level), "logging.level", "level must be one of %s", strings.Join(logLevels[1:], ", "))
	errs.require(slices.Contains(logFormats, c.Logging.Format), "logging.format", "format must be 'json' or 'text'")

	if len(errs) > 0 {
		return errs
	}
	return nil
}
