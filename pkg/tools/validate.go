// Copyright 2026 Datacloud Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationResult is the structured outcome of client-side SQL validation.
// It catches cheap mistakes before a round-trip to the service; passing
// validation is no guarantee the service will accept the query.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	ErrorType  string `json:"error_type,omitempty"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Validation error types.
const (
	errEmptyQuery       = "EMPTY_QUERY"
	errUnsupportedStmt  = "UNSUPPORTED_STATEMENT"
	errInvalidStatement = "INVALID_STATEMENT"
	errMissingFrom      = "MISSING_FROM"
	errInvalidTable     = "INVALID_TABLE"
)

// writeStatements lists statement keywords the query service rejects.
var writeStatements = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE", "MERGE",
}

var (
	fromTablePattern  = regexp.MustCompile(`(?i)\bFROM\s+["']?(\w+)["']?`)
	quotedIdentifiers = regexp.MustCompile(`"[^"]+"`)
)

// ValidateSQL performs lexical validation of a SQL query: non-empty, a
// SELECT (or WITH) statement, and a FROM clause whenever the query
// references quoted identifiers.
func ValidateSQL(sql string) ValidationResult {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ValidationResult{
			ErrorType: errEmptyQuery,
			Message:   "SQL query is empty",
		}
	}

	upper := strings.ToUpper(trimmed)
	firstWord := upper
	if idx := strings.IndexAny(upper, " \t\n("); idx > 0 {
		firstWord = upper[:idx]
	}

	for _, stmt := range writeStatements {
		if firstWord == stmt {
			return ValidationResult{
				ErrorType:  errUnsupportedStmt,
				Message:    fmt.Sprintf("Statement type '%s' is not supported", stmt),
				Suggestion: "The Data Cloud query service only supports SELECT statements",
			}
		}
	}

	if firstWord != "SELECT" && firstWord != "WITH" {
		return ValidationResult{
			ErrorType:  errInvalidStatement,
			Message:    "Could not determine SQL statement type",
			Suggestion: "Ensure your query starts with SELECT",
		}
	}

	// SELECT "col" without FROM references a column that has no table.
	// Bare expressions like SELECT 1 or SELECT CURRENT_DATE are fine.
	if !strings.Contains(upper, "FROM") && quotedIdentifiers.MatchString(trimmed) {
		return ValidationResult{
			ErrorType:  errMissingFrom,
			Message:    "SELECT query appears to reference columns but is missing FROM clause",
			Suggestion: "Add a FROM clause to specify the table",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateSQLWithTables validates syntax and then checks that the table
// referenced in the FROM clause exists, suggesting a close match when it
// does not.
func ValidateSQLWithTables(sql string, tables []string) ValidationResult {
	result := ValidateSQL(sql)
	if !result.Valid {
		return result
	}

	match := fromTablePattern.FindStringSubmatch(sql)
	if match == nil {
		return result
	}
	table := match[1]

	for _, known := range tables {
		if known == table {
			return result
		}
	}

	res := ValidationResult{
		ErrorType: errInvalidTable,
		Message:   fmt.Sprintf("Table '%s' not found", table),
	}
	if suggestion := suggestSimilar(table, tables); suggestion != "" {
		res.Suggestion = fmt.Sprintf("Did you mean '%s'?", suggestion)
	}
	return res
}

// suggestSimilar finds the closest known name: case-insensitive match
// first, then a name whose trailing segment (after the last "__") matches.
func suggestSimilar(name string, known []string) string {
	for _, k := range known {
		if strings.EqualFold(k, name) {
			return k
		}
	}

	// Data Cloud model names end in suffixed segments like orders__dlm;
	// users often type only the base part.
	lower := strings.ToLower(name)
	if idx := strings.LastIndex(lower, "__"); idx >= 0 {
		lower = lower[idx+2:]
	}
	for _, k := range known {
		kl := strings.ToLower(k)
		if strings.HasSuffix(kl, "__"+lower) || strings.HasPrefix(kl, lower+"__") {
			return k
		}
	}

	for _, k := range known {
		if strings.Contains(strings.ToLower(k), lower) {
			return k
		}
	}
	return ""
}
