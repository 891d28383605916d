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
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// queryAccumulator is the orchestrator's running state across submit, poll,
// and pagination.
type queryAccumulator struct {
	queryID string
	status  string
	rows    [][]any
	columns []Column

	// total is the authoritative server-reported row count, -1 until
	// first reported.
	total int64
}

// Query runs sql to completion: submit, long-poll until a terminal
// completion status, then drain the rows endpoint until every reported row
// has been retrieved. Rows are returned in server order. A query that
// produces zero rows returns an empty result set with whatever column
// metadata the server sent; it is not an error.
func (s *Session) Query(ctx context.Context, sql string) (*ResultSet, error) {
	acc, err := s.submit(ctx, sql)
	if err != nil {
		return nil, err
	}

	if err := s.pollUntilComplete(ctx, acc); err != nil {
		return nil, err
	}

	if err := s.drainRows(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("query complete",
		zap.String("query_id", acc.queryID),
		zap.Int("rows", len(acc.rows)))

	return &ResultSet{
		QueryID: acc.queryID,
		Rows:    acc.rows,
		Columns: acc.columns,
	}, nil
}

// CancelQuery asks the server to stop a running query. Fire-and-forget:
// the server may already be done or may ignore a late cancel, so the call
// neither blocks on nor verifies the query's eventual state.
func (s *Session) CancelQuery(ctx context.Context, queryID string) error {
	_, err := s.transport.Do(ctx, http.MethodDelete, s.apiPrefix+"/query-sql/"+queryID, s.queryParams(), nil)
	if err != nil {
		return fmt.Errorf("cancel query %s: %w", queryID, err)
	}
	s.logger.Info("query cancel requested", zap.String("query_id", queryID))
	return nil
}

// submit posts the SQL text and seeds the accumulator from the response,
// which may already carry the first page of rows, the column metadata, and
// a completion status.
func (s *Session) submit(ctx context.Context, sql string) (*queryAccumulator, error) {
	body, err := s.transport.Do(ctx, http.MethodPost, s.apiPrefix+"/query-sql", s.queryParams(),
		map[string]string{"sql": sql})
	if err != nil {
		return nil, err
	}

	var resp querySubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode submission response: %w", err)
	}

	// Without an identifier there is nothing to poll against.
	queryID := resp.queryID()
	if queryID == "" {
		return nil, newProtocolViolation(ReasonMissingQueryID,
			"submission response carried no query id")
	}

	acc := &queryAccumulator{
		queryID: queryID,
		status:  resp.completionStatus(),
		rows:    resp.Data,
		columns: resp.Metadata,
		total:   -1,
	}
	if rc := resp.rowCount(); rc != nil {
		acc.total = int64(*rc)
	}

	s.logger.Info("query submitted",
		zap.String("query_id", queryID),
		zap.String("completion_status", acc.status),
		zap.Int("inline_rows", len(acc.rows)))
	return acc, nil
}

// pollUntilComplete long-polls the status endpoint until the server reports
// a terminal completion status. Each poll may hold the connection open up
// to the waitTimeMs hint, so the loop is round-trip-cheap even for slow
// queries.
func (s *Session) pollUntilComplete(ctx context.Context, acc *queryAccumulator) error {
	params := s.queryParams()
	params.Set("waitTimeMs", strconv.Itoa(s.waitTimeMs))

	polls := 0
	for !isTerminalStatus(acc.status) {
		if s.maxPolls > 0 && polls >= s.maxPolls {
			return fmt.Errorf("query %s not complete after %d polls (last status %q)",
				acc.queryID, polls, acc.status)
		}
		polls++

		body, err := s.transport.Do(ctx, http.MethodGet, s.apiPrefix+"/query-sql/"+acc.queryID, params, nil)
		if err != nil {
			return err
		}

		var resp queryPollResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode poll response: %w", err)
		}

		if st := resp.completionStatus(); st != "" {
			acc.status = st
		}
		if rc := resp.rowCount(); rc != nil {
			acc.total = int64(*rc)
		}
		if len(resp.Metadata) > 0 && len(acc.columns) == 0 {
			acc.columns = resp.Metadata
		}

		s.logger.Debug("query poll",
			zap.String("query_id", acc.queryID),
			zap.String("completion_status", acc.status),
			zap.Int64("row_count", acc.total))
	}
	return nil
}

// drainRows fetches pages from the rows endpoint until every reported row
// has been accumulated, appending in page order. The offset is always the
// count of rows already held, so inline submission rows are never
// re-fetched.
func (s *Session) drainRows(ctx context.Context, acc *queryAccumulator) error {
	if acc.total < 0 {
		// The server never reported a total; the inline rows are all
		// there is.
		return nil
	}

	for int64(len(acc.rows)) < acc.total {
		params := s.queryParams()
		params.Set("rowLimit", strconv.Itoa(s.batchSize))
		params.Set("offset", strconv.FormatInt(int64(len(acc.rows)), 10))
		params.Set("omitSchema", "true")

		body, err := s.transport.Do(ctx, http.MethodGet, s.apiPrefix+"/query-sql/"+acc.queryID+"/rows", params, nil)
		if err != nil {
			return err
		}

		var page queryRowsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("decode rows page: %w", err)
		}

		returned := page.returned()
		if returned == 0 || len(page.Data) == 0 {
			// The server still owes rows but delivered none: its row
			// accounting is inconsistent with its data delivery. Bail
			// rather than loop forever or silently truncate.
			return newProtocolViolation(ReasonMissingRows,
				fmt.Sprintf("rows endpoint returned no rows at offset %d with %d of %d rows retrieved",
					len(acc.rows), len(acc.rows), acc.total))
		}

		acc.rows = append(acc.rows, page.Data...)
		s.logger.Debug("rows page fetched",
			zap.String("query_id", acc.queryID),
			zap.Int64("returned", returned),
			zap.Int("accumulated", len(acc.rows)),
			zap.Int64("total", acc.total))
	}
	return nil
}
