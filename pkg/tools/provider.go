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

// Package tools exposes Data Cloud operations as MCP tools: query
// execution, catalog browsing, query cancellation, and client-side SQL
// pre-validation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/datacloud-labs/datacloud-mcp/pkg/fabric"
	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/protocol"
	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/server"
)

// connectionResourceURI identifies the connection-info resource.
const connectionResourceURI = "datacloud://connection"

// ConnectionInfo describes the tenant connection the tools operate on.
type ConnectionInfo struct {
	Org       string `json:"org,omitempty"`
	Dataspace string `json:"dataspace"`
	Backend   string `json:"backend"`
}

// Provider implements server.ToolProvider and server.ResourceProvider over
// an execution backend.
type Provider struct {
	backend fabric.ExecutionBackend
	info    ConnectionInfo
	logger  *zap.Logger
	tools   []protocol.Tool
}

var (
	_ server.ToolProvider     = (*Provider)(nil)
	_ server.ResourceProvider = (*Provider)(nil)
)

// NewProvider creates a tool provider over the given backend.
func NewProvider(backend fabric.ExecutionBackend, info ConnectionInfo, logger *zap.Logger) (*Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	info.Backend = backend.Name()

	return &Provider{
		backend: backend,
		info:    info,
		logger:  logger,
		tools:   toolDefinitions(),
	}, nil
}

func toolDefinitions() []protocol.Tool {
	return []protocol.Tool{
		{
			Name:        "query",
			Description: "Execute a SQL query against Data Cloud (PostgreSQL dialect). Always quote identifiers and use exact casing.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "The SQL query to execute",
					},
				},
				"required": []interface{}{"sql"},
			},
		},
		{
			Name:        "list_tables",
			Description: "List available tables in Data Cloud",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"filter": map[string]interface{}{
						"type":        "string",
						"description": "Optional LIKE pattern to filter table names (e.g. 'orders%')",
					},
				},
			},
		},
		{
			Name:        "describe_table",
			Description: "Get column names and types for a table",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"table": map[string]interface{}{
						"type":        "string",
						"description": "The table name",
					},
				},
				"required": []interface{}{"table"},
			},
		},
		{
			Name:        "cancel_query",
			Description: "Cancel a running query by its query id",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query_id": map[string]interface{}{
						"type":        "string",
						"description": "The id of the query to cancel",
					},
				},
				"required": []interface{}{"query_id"},
			},
		},
		{
			Name:        "validate_query",
			Description: "Validate SQL query syntax before execution",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "The SQL query to validate",
					},
					"check_metadata": map[string]interface{}{
						"type":        "boolean",
						"description": "Also validate that the referenced table exists",
					},
				},
				"required": []interface{}{"sql"},
			},
		},
		{
			Name:        "get_connection_info",
			Description: "Show the current Data Cloud connection (org, dataspace, backend)",
			InputSchema: map[string]interface{}{
				"type": "object",
			},
		},
	}
}

// ListTools implements server.ToolProvider.
func (p *Provider) ListTools(context.Context) ([]protocol.Tool, error) {
	return p.tools, nil
}

// CallTool implements server.ToolProvider. Arguments are validated against
// the tool's schema before dispatch.
func (p *Provider) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	var tool *protocol.Tool
	for i := range p.tools {
		if p.tools[i].Name == name {
			tool = &p.tools[i]
			break
		}
	}
	if tool == nil {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := protocol.ValidateToolArguments(*tool, args); err != nil {
		return nil, err
	}

	p.logger.Info("tool call", zap.String("tool", name))

	switch name {
	case "query":
		return p.runQuery(ctx, args)
	case "list_tables":
		return p.listTables(ctx, args)
	case "describe_table":
		return p.describeTable(ctx, args)
	case "cancel_query":
		return p.cancelQuery(ctx, args)
	case "validate_query":
		return p.validateQuery(ctx, args)
	case "get_connection_info":
		return jsonResult(p.info)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (p *Provider) runQuery(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	sql, _ := args["sql"].(string)
	result, err := p.backend.ExecuteQuery(ctx, sql)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		cols[i] = c.Name
	}
	return jsonResult(map[string]interface{}{
		"columns":   cols,
		"data":      result.Rows,
		"row_count": result.RowCount,
		"query_id":  result.Metadata["query_id"],
	})
}

func (p *Provider) listTables(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	filters := map[string]string{}
	if f, _ := args["filter"].(string); f != "" {
		filters["filter"] = f
	}

	resources, err := p.backend.ListResources(ctx, filters)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.Name
	}
	return jsonResult(names)
}

func (p *Provider) describeTable(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	table, _ := args["table"].(string)
	schema, err := p.backend.GetSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	columns := make([]map[string]string, len(schema.Fields))
	for i, f := range schema.Fields {
		columns[i] = map[string]string{"name": f.Name, "type": f.Type}
	}
	return jsonResult(map[string]interface{}{
		"table":   schema.Name,
		"columns": columns,
	})
}

func (p *Provider) cancelQuery(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	queryID, _ := args["query_id"].(string)
	out, err := p.backend.ExecuteCustomOperation(ctx, "cancel_query",
		map[string]interface{}{"query_id": queryID})
	if err != nil {
		return nil, err
	}
	return jsonResult(out)
}

func (p *Provider) validateQuery(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
	sql, _ := args["sql"].(string)
	checkMetadata, _ := args["check_metadata"].(bool)

	result := ValidateSQL(sql)
	if result.Valid && checkMetadata {
		resources, err := p.backend.ListResources(ctx, nil)
		if err != nil {
			// Metadata lookup failures degrade to syntax-only validation.
			p.logger.Warn("metadata validation unavailable", zap.Error(err))
			return jsonResult(result)
		}
		tables := make([]string, len(resources))
		for i, r := range resources {
			tables[i] = r.Name
		}
		result = ValidateSQLWithTables(sql, tables)
	}
	return jsonResult(result)
}

// ListResources implements server.ResourceProvider.
func (p *Provider) ListResources(context.Context) ([]protocol.Resource, error) {
	return []protocol.Resource{{
		URI:         connectionResourceURI,
		Name:        "connection",
		Description: "The active Data Cloud connection",
		MimeType:    "application/json",
	}}, nil
}

// ReadResource implements server.ResourceProvider.
func (p *Provider) ReadResource(_ context.Context, uri string) (*protocol.ReadResourceResult, error) {
	if uri != connectionResourceURI {
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}
	text, err := json.Marshal(p.info)
	if err != nil {
		return nil, err
	}
	return &protocol.ReadResourceResult{
		Contents: []protocol.ResourceContents{{
			URI:      uri,
			MimeType: "application/json",
			Text:     string(text),
		}},
	}, nil
}

// jsonResult wraps a value as a single JSON text content item.
func jsonResult(v interface{}) (*protocol.CallToolResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: string(text)}},
	}, nil
}
