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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Terminal completion statuses. A query in either state has finished
// producing rows and will not change state again.
const (
	StatusFinished        = "Finished"
	StatusResultsProduced = "ResultsProduced"
)

func isTerminalStatus(status string) bool {
	return status == StatusFinished || status == StatusResultsProduced
}

// Column describes one result column. Order matches the position of values
// within each row.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ResultSet is a fully drained query result. Rows preserve server order:
// inline submission rows first, then each fetched page in offset order.
// A query that legitimately produced zero rows yields an empty (non-nil
// semantics aside, valid) Rows slice alongside the column metadata.
type ResultSet struct {
	QueryID string
	Rows    [][]any
	Columns []Column
}

// rowCount accepts the service's row-count fields whether they arrive as a
// JSON number or a numeric string.
type rowCount int64

func (c *rowCount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("row count %q is not numeric", s)
		}
		n = int64(f)
	}
	*c = rowCount(n)
	return nil
}

// columnList accepts column metadata in either of the service's shapes: an
// ordered array of column objects, or an object keyed by column name with a
// placeInOrder field fixing the position.
type columnList []Column

func (l *columnList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if trimmed[0] == '[' {
		var cols []Column
		if err := json.Unmarshal(data, &cols); err != nil {
			return err
		}
		*l = cols
		return nil
	}

	var keyed map[string]struct {
		Type         string `json:"type"`
		PlaceInOrder int    `json:"placeInOrder"`
	}
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	cols := make([]Column, 0, len(keyed))
	order := make(map[string]int, len(keyed))
	for name, meta := range keyed {
		cols = append(cols, Column{Name: name, Type: meta.Type})
		order[name] = meta.PlaceInOrder
	}
	sort.Slice(cols, func(i, j int) bool {
		return order[cols[i].Name] < order[cols[j].Name]
	})
	*l = cols
	return nil
}

// queryStatus is the nested status object carried by submit and poll
// responses.
type queryStatus struct {
	QueryID          string    `json:"queryId"`
	CompletionStatus string    `json:"completionStatus"`
	RowCount         *rowCount `json:"rowCount"`
}

// querySubmitResponse covers both observed submission shapes: the query id
// and progress fields nested under "status", or flattened at the top level.
// The submission may already carry the first page of rows and the column
// metadata.
type querySubmitResponse struct {
	Status           *queryStatus `json:"status"`
	QueryID          string       `json:"queryId"`
	CompletionStatus string       `json:"completionStatus"`
	RowCount         *rowCount    `json:"rowCount"`
	Data             [][]any      `json:"data"`
	Metadata         columnList   `json:"metadata"`
}

// queryID returns the service-assigned identifier from whichever shape the
// response used, or "" when absent from both.
func (r *querySubmitResponse) queryID() string {
	if r.Status != nil && r.Status.QueryID != "" {
		return r.Status.QueryID
	}
	return r.QueryID
}

func (r *querySubmitResponse) completionStatus() string {
	if r.Status != nil && r.Status.CompletionStatus != "" {
		return r.Status.CompletionStatus
	}
	return r.CompletionStatus
}

func (r *querySubmitResponse) rowCount() *rowCount {
	if r.Status != nil && r.Status.RowCount != nil {
		return r.Status.RowCount
	}
	return r.RowCount
}

// queryPollResponse is a status-poll response. Like submission, the fields
// may be nested under "status" or flattened.
type queryPollResponse struct {
	Status           *queryStatus `json:"status"`
	CompletionStatus string       `json:"completionStatus"`
	RowCount         *rowCount    `json:"rowCount"`
	Metadata         columnList   `json:"metadata"`
}

func (r *queryPollResponse) completionStatus() string {
	if r.Status != nil && r.Status.CompletionStatus != "" {
		return r.Status.CompletionStatus
	}
	return r.CompletionStatus
}

func (r *queryPollResponse) rowCount() *rowCount {
	if r.Status != nil && r.Status.RowCount != nil {
		return r.Status.RowCount
	}
	return r.RowCount
}

// queryRowsPage is one page from the rows endpoint.
type queryRowsPage struct {
	Data         [][]any   `json:"data"`
	ReturnedRows *rowCount `json:"returnedRows"`
}

// returned is the page's actual row count: the reported returnedRows when
// present, otherwise the row-array length.
func (p *queryRowsPage) returned() int64 {
	if p.ReturnedRows != nil {
		return int64(*p.ReturnedRows)
	}
	return int64(len(p.Data))
}
