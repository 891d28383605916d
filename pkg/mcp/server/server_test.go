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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/protocol"
)

// fakeToolProvider serves one echo tool.
type fakeToolProvider struct {
	calls []string
	fail  bool
}

func (p *fakeToolProvider) ListTools(context.Context) ([]protocol.Tool, error) {
	return []protocol.Tool{{
		Name:        "echo",
		Description: "Echo the input back",
		InputSchema: map[string]interface{}{"type": "object"},
	}}, nil
}

func (p *fakeToolProvider) CallTool(_ context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	p.calls = append(p.calls, name)
	if p.fail {
		return nil, fmt.Errorf("tool exploded")
	}
	text, _ := args["text"].(string)
	return &protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: text}},
	}, nil
}

// fakeResourceProvider serves one static resource.
type fakeResourceProvider struct{}

func (p *fakeResourceProvider) ListResources(context.Context) ([]protocol.Resource, error) {
	return []protocol.Resource{{URI: "test://thing", Name: "thing"}}, nil
}

func (p *fakeResourceProvider) ReadResource(_ context.Context, uri string) (*protocol.ReadResourceResult, error) {
	if uri != "test://thing" {
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}
	return &protocol.ReadResourceResult{
		Contents: []protocol.ResourceContents{{URI: uri, MimeType: "text/plain", Text: "hello"}},
	}, nil
}

func handle(t *testing.T, s *MCPServer, msg string) protocol.Response {
	t.Helper()
	respBytes, err := s.HandleMessage(context.Background(), []byte(msg))
	require.NoError(t, err)
	require.NotNil(t, respBytes)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(respBytes, &resp))
	return resp
}

func TestInitialize(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil,
		WithToolProvider(&fakeToolProvider{}),
		WithResourceProvider(&fakeResourceProvider{}))

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 1, "method": "initialize",
		"params": {"protocolVersion": "2024-11-05", "clientInfo": {"name": "test-client", "version": "0.1"}}}`)

	require.Nil(t, resp.Error)
	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
	assert.NotNil(t, result.Capabilities.Resources)

	require.NotNil(t, s.ClientInfo())
	assert.Equal(t, "test-client", s.ClientInfo().Name)
}

func TestToolsList(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil, WithToolProvider(&fakeToolProvider{}))

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}`)
	require.Nil(t, resp.Error)

	var result protocol.ToolListResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "echo", result.Tools[0].Name)
}

func TestToolsCall(t *testing.T) {
	provider := &fakeToolProvider{}
	s := NewMCPServer("test-server", "1.0.0", nil, WithToolProvider(provider))

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 3, "method": "tools/call",
		"params": {"name": "echo", "arguments": {"text": "hi"}}}`)
	require.Nil(t, resp.Error)

	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hi", result.Content[0].Text)
	assert.Equal(t, []string{"echo"}, provider.calls)
}

func TestToolsCallFailureIsInBand(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil, WithToolProvider(&fakeToolProvider{fail: true}))

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 4, "method": "tools/call",
		"params": {"name": "echo"}}`)

	// Tool failures come back as an error tool result, not a JSON-RPC error.
	require.Nil(t, resp.Error)
	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "tool exploded")
}

func TestToolsCallRequiresName(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil, WithToolProvider(&fakeToolProvider{}))

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 5, "method": "tools/call", "params": {}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.InvalidParams, resp.Error.Code)
}

func TestResources(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil, WithResourceProvider(&fakeResourceProvider{}))

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 6, "method": "resources/list"}`)
	require.Nil(t, resp.Error)
	var list protocol.ResourceListResult
	require.NoError(t, json.Unmarshal(resp.Result, &list))
	require.Len(t, list.Resources, 1)

	resp = handle(t, s, `{"jsonrpc": "2.0", "id": 7, "method": "resources/read",
		"params": {"uri": "test://thing"}}`)
	require.Nil(t, resp.Error)
	var read protocol.ReadResourceResult
	require.NoError(t, json.Unmarshal(resp.Result, &read))
	require.Len(t, read.Contents, 1)
	assert.Equal(t, "hello", read.Contents[0].Text)

	resp = handle(t, s, `{"jsonrpc": "2.0", "id": 8, "method": "resources/read",
		"params": {"uri": "test://missing"}}`)
	require.NotNil(t, resp.Error)
}

func TestMethodNotFound(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil)

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 9, "method": "frobnicate"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.MethodNotFound, resp.Error.Code)
}

func TestUnknownNotificationIgnored(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil)

	respBytes, err := s.HandleMessage(context.Background(), []byte(`{"jsonrpc": "2.0", "method": "frobnicate"}`))
	require.NoError(t, err)
	assert.Nil(t, respBytes)
}

func TestParseError(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil)

	resp := handle(t, s, `{not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.ParseError, resp.Error.Code)
}

func TestPing(t *testing.T) {
	s := NewMCPServer("test-server", "1.0.0", nil)

	resp := handle(t, s, `{"jsonrpc": "2.0", "id": 10, "method": "ping"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{}`, string(resp.Result))
}
