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

// Package datacloud provides an ExecutionBackend implementation for
// Salesforce Data Cloud, driving the asynchronous query protocol through a
// tenant session. Catalog operations (list/describe tables) are expressed
// as SQL against the service's pg_catalog views.
package datacloud

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datacloud-labs/datacloud-mcp/pkg/datacloud"
	"github.com/datacloud-labs/datacloud-mcp/pkg/fabric"
)

// defaultTableFilter matches every table when no LIKE filter is configured.
const defaultTableFilter = "%"

// identifierPattern restricts identifiers interpolated into catalog SQL.
// Percent is allowed so LIKE filters pass the same validation.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_%]+$`)

// sqlKeywords that must never appear as an identifier.
var sqlKeywords = map[string]struct{}{
	"DROP": {}, "DELETE": {}, "INSERT": {}, "UPDATE": {}, "TRUNCATE": {},
	"ALTER": {}, "CREATE": {}, "EXEC": {}, "EXECUTE": {},
}

// Compile-time interface check
var _ fabric.ExecutionBackend = (*Backend)(nil)

// Config holds configuration for the Data Cloud backend.
type Config struct {
	// Session is the tenant query session. Required.
	Session *datacloud.Session

	// TableFilter is the LIKE pattern applied when listing tables.
	// Default "%".
	TableFilter string

	// Logger for backend operations.
	Logger *zap.Logger
}

// Backend implements fabric.ExecutionBackend over a Data Cloud tenant
// session.
type Backend struct {
	session     *datacloud.Session
	tableFilter string
	logger      *zap.Logger
}

// NewBackend creates a Data Cloud backend.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("Session is required")
	}
	if cfg.TableFilter == "" {
		cfg.TableFilter = defaultTableFilter
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := validateIdentifier(cfg.TableFilter, "table filter"); err != nil {
		return nil, err
	}

	cfg.Logger.Info("creating datacloud backend",
		zap.String("dataspace", cfg.Session.Dataspace()),
		zap.String("table_filter", cfg.TableFilter))

	return &Backend{
		session:     cfg.Session,
		tableFilter: cfg.TableFilter,
		logger:      cfg.Logger,
	}, nil
}

// validateIdentifier rejects names that could smuggle SQL into catalog
// queries, which interpolate the identifier directly.
func validateIdentifier(name, kind string) error {
	if name == "" {
		return fmt.Errorf("empty %s name", kind)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid %s name %q: only alphanumeric, underscores, and percent signs allowed", kind, name)
	}
	if _, bad := sqlKeywords[strings.ToUpper(name)]; bad {
		return fmt.Errorf("invalid %s name %q: SQL keywords not allowed", kind, name)
	}
	return nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "datacloud"
}

// ExecuteQuery runs a SQL query through the asynchronous query protocol
// and returns the drained result.
func (b *Backend) ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error) {
	start := time.Now()
	b.logger.Debug("executing query", zap.String("query", query))

	result, err := b.session.Query(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}

	cols := make([]fabric.Column, len(result.Columns))
	for i, c := range result.Columns {
		cols[i] = fabric.Column{Name: c.Name, Type: c.Type}
	}

	return &fabric.QueryResult{
		Rows:     result.Rows,
		Columns:  cols,
		RowCount: len(result.Rows),
		Metadata: map[string]interface{}{
			"query_id":  result.QueryID,
			"dataspace": b.session.Dataspace(),
		},
		ExecutionStats: fabric.ExecutionStats{
			DurationMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

// GetSchema retrieves column information for a table via the service's
// pg_catalog views.
func (b *Backend) GetSchema(ctx context.Context, resource string) (*fabric.Schema, error) {
	if err := validateIdentifier(resource, "table"); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT a.attname, pg_catalog.format_type(a.atttypid, a.atttypmod)
		FROM pg_catalog.pg_namespace n
		JOIN pg_catalog.pg_class c ON (c.relnamespace = n.oid)
		JOIN pg_catalog.pg_attribute a ON (a.attrelid = c.oid)
		WHERE a.attnum > 0 AND NOT a.attisdropped AND c.relname='%s'`, resource)

	result, err := b.session.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", resource, err)
	}
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("table %s not found", resource)
	}

	fields := make([]fabric.Field, 0, len(result.Rows))
	for _, row := range result.Rows {
		f := fabric.Field{Name: stringValue(row, 0), Type: stringValue(row, 1)}
		fields = append(fields, f)
	}

	return &fabric.Schema{
		Name:   resource,
		Type:   "table",
		Fields: fields,
		Metadata: map[string]interface{}{
			"dataspace": b.session.Dataspace(),
		},
	}, nil
}

// ListResources lists tables matching the configured LIKE filter, or a
// caller-supplied "filter" override.
func (b *Backend) ListResources(ctx context.Context, filters map[string]string) ([]fabric.Resource, error) {
	pattern := b.tableFilter
	if f, ok := filters["filter"]; ok && f != "" {
		pattern = f
	}
	if err := validateIdentifier(pattern, "table filter"); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT c.relname AS TABLE_NAME
		FROM pg_catalog.pg_namespace n, pg_catalog.pg_class c
		LEFT JOIN pg_catalog.pg_description d ON (c.oid = d.objoid AND d.objsubid = 0 AND d.classoid = 'pg_class'::regclass)
		WHERE c.relnamespace = n.oid AND c.relname LIKE '%s'`, pattern)

	result, err := b.session.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	resources := make([]fabric.Resource, 0, len(result.Rows))
	for _, row := range result.Rows {
		resources = append(resources, fabric.Resource{
			Name: stringValue(row, 0),
			Type: "table",
		})
	}
	return resources, nil
}

// GetMetadata returns lightweight metadata for a table.
func (b *Backend) GetMetadata(ctx context.Context, resource string) (map[string]interface{}, error) {
	schema, err := b.GetSchema(ctx, resource)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"table":        resource,
		"dataspace":    b.session.Dataspace(),
		"column_count": len(schema.Fields),
	}, nil
}

// Ping verifies end-to-end connectivity, including authentication, by
// running a trivial query.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.session.Query(ctx, "SELECT 1")
	if err != nil {
		return fmt.Errorf("datacloud ping failed: %w", err)
	}
	return nil
}

// Capabilities returns the backend's capabilities.
func (b *Backend) Capabilities() *fabric.Capabilities {
	return &fabric.Capabilities{
		SupportsConcurrency: true,
		SupportedOperations: []string{"cancel_query"},
		Features: map[string]bool{
			"sql":          true,
			"long_polling": true,
			"pagination":   true,
		},
	}
}

// ExecuteCustomOperation handles Data Cloud specific operations.
//
// Supported operations:
//   - "cancel_query": params {"query_id": string}
func (b *Backend) ExecuteCustomOperation(ctx context.Context, op string, params map[string]interface{}) (interface{}, error) {
	switch op {
	case "cancel_query":
		queryID, _ := params["query_id"].(string)
		if queryID == "" {
			return nil, fmt.Errorf("cancel_query requires a query_id parameter")
		}
		if err := b.session.CancelQuery(ctx, queryID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"cancelled": queryID}, nil
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// Close releases backend resources. The session holds no persistent
// connections, so this is a no-op kept for interface compatibility.
func (b *Backend) Close() error {
	b.logger.Info("closing datacloud backend")
	return nil
}

func stringValue(row []interface{}, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", row[idx])
}
