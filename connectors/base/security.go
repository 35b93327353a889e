// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sqlReserved covers the keywords most likely to appear in injected
// identifiers. Not exhaustive.
var sqlReserved = map[string]struct{}{
	"SELECT": {}, "INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {},
	"CREATE": {}, "ALTER": {}, "TABLE": {}, "DATABASE": {}, "INDEX": {},
	"FROM": {}, "WHERE": {}, "AND": {}, "OR": {}, "NOT": {}, "NULL": {},
	"TRUE": {}, "FALSE": {}, "JOIN": {}, "UNION": {}, "GRANT": {},
	"REVOKE": {}, "TRUNCATE": {}, "VALUES": {}, "SET": {},
}

// ValidateSQLIdentifier checks that a string is safe to interpolate as a
// table or column name. Identifiers arriving from API filters must pass
// this before they reach a statement.
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(identifier) {
		return fmt.Errorf("invalid SQL identifier: %q", identifier)
	}
	if _, ok := sqlReserved[strings.ToUpper(identifier)]; ok {
		return fmt.Errorf("identifier %q is a SQL reserved word", identifier)
	}
	return nil
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SanitizeLogString escapes newlines and strips ANSI sequences so
// statements and user input cannot forge log entries.
func SanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = ansiEscape.ReplaceAllString(s, "")

	const maxLogLength = 500
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

// ValidateFilePath rejects relative paths that escape their root. The
// generators run it on every LLM-supplied file path before writing.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed: %q", path)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return fmt.Errorf("absolute paths not allowed: %q", path)
	}
	return nil
}
