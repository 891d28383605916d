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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datacloud-labs/datacloud-mcp/pkg/datacloud"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL query and print the result as JSON",
	Long: `Run a single SQL query against Data Cloud and print the result to stdout.

Example:
  datacloud-mcp query 'SELECT "Id", "Name" FROM "Account_Home__dll" LIMIT 10'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <query-id>",
	Short: "Cancel a running query",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(cancelCmd)
}

// queryOutput is the JSON shape printed by the query command.
type queryOutput struct {
	QueryID  string             `json:"query_id"`
	Columns  []datacloud.Column `json:"columns,omitempty"`
	Data     [][]interface{}    `json:"data"`
	RowCount int                `json:"row_count"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger := setupLogger(config.Logging)
	defer func() { _ = logger.Sync() }()

	session, _, err := buildSession(config, logger)
	if err != nil {
		return err
	}

	result, err := session.Query(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out := queryOutput{
		QueryID:  result.QueryID,
		Columns:  result.Columns,
		Data:     result.Rows,
		RowCount: len(result.Rows),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runCancel(cmd *cobra.Command, args []string) error {
	logger := setupLogger(config.Logging)
	defer func() { _ = logger.Sync() }()

	session, _, err := buildSession(config, logger)
	if err != nil {
		return err
	}

	if err := session.CancelQuery(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	fmt.Printf("cancelled %s\n", args[0])
	return nil
}
