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

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"string id", `"abc-1"`, `"abc-1"`},
		{"numeric id", `42`, `42`},
		{"null id", `null`, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RequestID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			out, err := json.Marshal(&id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestRequestIDInvalid(t *testing.T) {
	var id RequestID
	assert.Error(t, json.Unmarshal([]byte(`{"bad": true}`), &id))
}

func TestRequestIDString(t *testing.T) {
	assert.Equal(t, "null", (*RequestID)(nil).String())
	assert.Equal(t, "abc", NewStringRequestID("abc").String())
	assert.Equal(t, "7", NewNumericRequestID(7).String())
}

func TestRequestUnmarshal(t *testing.T) {
	raw := `{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "query"}}`
	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, JSONRPCVersion, req.JSONRPC)
	assert.Equal(t, "tools/call", req.Method)
	assert.Equal(t, int64(1), *req.ID.Num)
	assert.JSONEq(t, `{"name": "query"}`, string(req.Params))
	require.NoError(t, ValidateRequest(&req))
}

func TestValidateRequest(t *testing.T) {
	assert.Error(t, ValidateRequest(&Request{JSONRPC: "1.0", Method: "ping"}))
	assert.Error(t, ValidateRequest(&Request{JSONRPC: "2.0"}))
	assert.NoError(t, ValidateRequest(&Request{JSONRPC: "2.0", Method: "ping"}))
}

func TestErrorFormatting(t *testing.T) {
	plain := NewError(MethodNotFound, "method not found: frobnicate", nil)
	assert.Contains(t, plain.Error(), "-32601")
	assert.Contains(t, plain.Error(), "frobnicate")

	withData := NewError(InvalidParams, "bad params", map[string]string{"field": "sql"})
	assert.Contains(t, withData.Error(), "sql")
}

func TestValidateToolArguments(t *testing.T) {
	tool := Tool{
		Name: "query",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sql": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"sql"},
		},
	}

	assert.NoError(t, ValidateToolArguments(tool, map[string]interface{}{"sql": "SELECT 1"}))
	assert.Error(t, ValidateToolArguments(tool, map[string]interface{}{}))
	assert.Error(t, ValidateToolArguments(tool, map[string]interface{}{"sql": 7}))

	// No schema means no validation.
	assert.NoError(t, ValidateToolArguments(Tool{Name: "free"}, map[string]interface{}{"x": 1}))
}
