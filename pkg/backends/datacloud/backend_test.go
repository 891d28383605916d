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

package datacloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacloud-labs/datacloud-mcp/pkg/auth"
	dc "github.com/datacloud-labs/datacloud-mcp/pkg/datacloud"
)

// scriptedService answers query submissions according to the submitted SQL,
// completing every query inline so tests stay single-round-trip.
type scriptedService struct {
	t       *testing.T
	answers map[string]string // SQL substring -> submit response body
	sqls    []string
	cancels []string
}

func (s *scriptedService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			parts := strings.Split(r.URL.Path, "/")
			s.cancels = append(s.cancels, parts[len(parts)-1])
			w.WriteHeader(http.StatusNoContent)
			return
		}

		require.Equal(s.t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var req struct {
			SQL string `json:"sql"`
		}
		require.NoError(s.t, json.Unmarshal(body, &req))
		s.sqls = append(s.sqls, req.SQL)

		for substr, resp := range s.answers {
			if strings.Contains(req.SQL, substr) {
				fmt.Fprint(w, resp)
				return
			}
		}
		s.t.Fatalf("no scripted answer for SQL: %s", req.SQL)
	})
}

func newTestBackend(t *testing.T, svc *scriptedService) *Backend {
	t.Helper()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	session, err := dc.NewSession(dc.SessionConfig{
		Credentials: &auth.StaticSource{TokenValue: "t", URL: srv.URL},
		Dataspace:   "sales",
	})
	require.NoError(t, err)

	backend, err := NewBackend(Config{Session: session})
	require.NoError(t, err)
	return backend
}

func submitResult(queryID string, rows string, metadata string) string {
	return fmt.Sprintf(`{
		"status": {"queryId": %q, "completionStatus": "Finished", "rowCount": %d},
		"data": %s,
		"metadata": %s
	}`, queryID, strings.Count(rows, "[")-1, rows, metadata)
}

func TestBackendExecuteQuery(t *testing.T) {
	svc := &scriptedService{t: t, answers: map[string]string{
		"FROM orders": submitResult("q-1",
			`[["o-1", 10], ["o-2", 20]]`,
			`[{"name": "id", "type": "VARCHAR"}, {"name": "amount", "type": "NUMBER"}]`),
	}}
	backend := newTestBackend(t, svc)

	result, err := backend.ExecuteQuery(context.Background(), `SELECT id, amount FROM orders`)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, "o-1", result.Rows[0][0])
	assert.Equal(t, []string{"id", "amount"}, []string{result.Columns[0].Name, result.Columns[1].Name})
	assert.Equal(t, "q-1", result.Metadata["query_id"])
	assert.Equal(t, "sales", result.Metadata["dataspace"])
}

func TestBackendListResources(t *testing.T) {
	svc := &scriptedService{t: t, answers: map[string]string{
		"pg_class": submitResult("q-2", `[["orders__dlm"], ["contacts__dlm"]]`, `[{"name": "TABLE_NAME", "type": "VARCHAR"}]`),
	}}
	backend := newTestBackend(t, svc)

	resources, err := backend.ListResources(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, resources, 2)
	assert.Equal(t, "orders__dlm", resources[0].Name)
	assert.Equal(t, "table", resources[0].Type)
	assert.Contains(t, svc.sqls[0], "LIKE '%'")
}

func TestBackendListResourcesWithFilter(t *testing.T) {
	svc := &scriptedService{t: t, answers: map[string]string{
		"pg_class": submitResult("q-3", `[["orders__dlm"]]`, `[]`),
	}}
	backend := newTestBackend(t, svc)

	_, err := backend.ListResources(context.Background(), map[string]string{"filter": "orders%"})
	require.NoError(t, err)
	assert.Contains(t, svc.sqls[0], "LIKE 'orders%'")

	_, err = backend.ListResources(context.Background(), map[string]string{"filter": "x'; DROP TABLE t"})
	require.Error(t, err, "injection attempts in the filter are rejected before any query runs")
	assert.Len(t, svc.sqls, 1)
}

func TestBackendGetSchema(t *testing.T) {
	svc := &scriptedService{t: t, answers: map[string]string{
		"pg_attribute": submitResult("q-4",
			`[["id", "character varying"], ["amount", "numeric"]]`,
			`[{"name": "attname", "type": "VARCHAR"}, {"name": "format_type", "type": "VARCHAR"}]`),
	}}
	backend := newTestBackend(t, svc)

	schema, err := backend.GetSchema(context.Background(), "orders__dlm")
	require.NoError(t, err)

	assert.Equal(t, "orders__dlm", schema.Name)
	require.Len(t, schema.Fields, 2)
	assert.Equal(t, "id", schema.Fields[0].Name)
	assert.Equal(t, "character varying", schema.Fields[0].Type)
	assert.Contains(t, svc.sqls[0], "relname='orders__dlm'")
}

func TestBackendGetSchemaRejectsBadIdentifier(t *testing.T) {
	svc := &scriptedService{t: t}
	backend := newTestBackend(t, svc)

	_, err := backend.GetSchema(context.Background(), "orders'; DROP TABLE x--")
	require.Error(t, err)

	_, err = backend.GetSchema(context.Background(), "DROP")
	require.Error(t, err)

	_, err = backend.GetSchema(context.Background(), "")
	require.Error(t, err)

	assert.Empty(t, svc.sqls, "invalid identifiers never reach the service")
}

func TestBackendGetSchemaUnknownTable(t *testing.T) {
	svc := &scriptedService{t: t, answers: map[string]string{
		"pg_attribute": `{"status": {"queryId": "q-5", "completionStatus": "Finished", "rowCount": 0}, "data": [], "metadata": []}`,
	}}
	backend := newTestBackend(t, svc)

	_, err := backend.GetSchema(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestBackendPing(t *testing.T) {
	svc := &scriptedService{t: t, answers: map[string]string{
		"SELECT 1": `{"status": {"queryId": "q-6", "completionStatus": "Finished", "rowCount": 0}}`,
	}}
	backend := newTestBackend(t, svc)

	require.NoError(t, backend.Ping(context.Background()))
}

func TestBackendCancelQueryOperation(t *testing.T) {
	svc := &scriptedService{t: t}
	backend := newTestBackend(t, svc)

	out, err := backend.ExecuteCustomOperation(context.Background(), "cancel_query",
		map[string]interface{}{"query_id": "q-7"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"cancelled": "q-7"}, out)
	assert.Equal(t, []string{"q-7"}, svc.cancels)

	_, err = backend.ExecuteCustomOperation(context.Background(), "cancel_query", nil)
	require.Error(t, err)

	_, err = backend.ExecuteCustomOperation(context.Background(), "reindex", nil)
	require.Error(t, err)
}

func TestBackendCapabilities(t *testing.T) {
	svc := &scriptedService{t: t}
	backend := newTestBackend(t, svc)

	caps := backend.Capabilities()
	assert.True(t, caps.SupportsConcurrency)
	assert.Contains(t, caps.SupportedOperations, "cancel_query")
	assert.Equal(t, "datacloud", backend.Name())
	assert.NoError(t, backend.Close())
}

func TestBackendRequiresSession(t *testing.T) {
	_, err := NewBackend(Config{})
	require.Error(t, err)
}
