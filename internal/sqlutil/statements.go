// Package sqlutil provides SQL utility functions for gofanout.
package sqlutil

import (
	"strings"
)

// SplitStatements splits raw query text on ';' into trimmed, non-empty
// statements, preserving order.
// It does not understand quoting: a ';' inside a string literal or a
// function body splits the statement.
// Example: "a;; b ;" -> ["a", "b"]
func SplitStatements(query string) []string {
	parts := strings.Split(query, ";")
	statements := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}

// IsReadStatement reports whether a statement is treated as a read, i.e. its
// trimmed text starts with "select" in any case.
func IsReadStatement(statement string) bool {
	s := strings.TrimSpace(statement)
	const prefix = "select"
	if len(s) < len(prefix) {
		return false
	}
	return strings.EqualFold(s[:len(prefix)], prefix)
}
