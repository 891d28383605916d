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
package fabric

import (
	"context"
)

// ExecutionBackend defines the interface for pluggable execution backends.
// The Data Cloud backend is the primary implementation; the contract stays
// generic so other analytical stores can plug into the same tool layer.
type ExecutionBackend interface {
	// Name returns the backend identifier (e.g., "datacloud")
	Name() string

	// ExecuteQuery runs a SQL query to completion and returns the result.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// GetSchema retrieves column information for a table or view.
	GetSchema(ctx context.Context, resource string) (*Schema, error)

	// ListResources lists available tables/views with optional filtering.
	ListResources(ctx context.Context, filters map[string]string) ([]Resource, error)

	// GetMetadata retrieves backend-specific metadata for a resource.
	GetMetadata(ctx context.Context, resource string) (map[string]interface{}, error)

	// Ping checks backend connectivity and health.
	Ping(ctx context.Context) error

	// Capabilities returns the backend's capabilities for feature discovery.
	Capabilities() *Capabilities

	// ExecuteCustomOperation allows backend-specific operations not covered
	// by the standard interface, such as cancelling a running query.
	ExecuteCustomOperation(ctx context.Context, op string, params map[string]interface{}) (interface{}, error)

	// Close releases backend resources.
	Close() error
}

// QueryResult represents the result of executing a query.
type QueryResult struct {
	// Rows holds the result data positionally; values within each row
	// align with Columns by index.
	Rows [][]interface{}

	// Columns for tabular results.
	Columns []Column

	// RowCount is the number of rows in Rows.
	RowCount int

	// Metadata contains backend-specific result metadata (query id,
	// dataspace, etc.).
	Metadata map[string]interface{}

	// ExecutionStats tracks execution metrics.
	ExecutionStats ExecutionStats
}

// Column represents a column in tabular results.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// ExecutionStats tracks execution metrics.
type ExecutionStats struct {
	// Duration in milliseconds
	DurationMs int64
}

// Schema represents the schema of a resource.
type Schema struct {
	// Resource name (table or view)
	Name string

	// Type of resource (table, view)
	Type string

	// Fields/columns
	Fields []Field

	// Metadata contains additional schema information
	Metadata map[string]interface{}
}

// Field represents a column in a schema.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// Resource represents an available resource in the backend.
type Resource struct {
	Name        string
	Type        string
	Description string
	Metadata    map[string]interface{}
}

// Capabilities describes what a backend supports.
type Capabilities struct {
	// SupportsConcurrency indicates if the backend supports concurrent
	// query executions
	SupportsConcurrency bool

	// SupportedOperations lists supported custom operations
	SupportedOperations []string

	// Features lists backend-specific features
	Features map[string]bool

	// Limits contains backend-specific limits
	Limits map[string]int64
}
