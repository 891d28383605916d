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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datacloud-labs/datacloud-mcp/internal/version"
)

var (
	cfgFile string
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:     "datacloud-mcp",
	Short:   "MCP server for Salesforce Data Cloud SQL",
	Long:    `datacloud-mcp bridges MCP clients and Salesforce Data Cloud: it runs long-running Connect API SQL queries (submit, poll, paginate) and exposes them as MCP tools over stdio.`,
	Version: version.Get(),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.datacloud-mcp/datacloud-mcp.yaml)")

	// Auth flags
	rootCmd.PersistentFlags().String("org", "", "Salesforce CLI org alias or username (sf org display -o <org>)")
	rootCmd.PersistentFlags().String("token", "", "static platform access token (or use keyring/env)")
	rootCmd.PersistentFlags().String("instance-url", "", "platform instance URL (required with --token)")
	rootCmd.PersistentFlags().String("cache-path", "", "tenant token cache file (default: ~/.datacloud-mcp/token.json)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "disable the on-disk tenant token cache")

	// Query flags
	rootCmd.PersistentFlags().String("dataspace", "default", "Data Cloud dataspace to query")
	rootCmd.PersistentFlags().String("workload", defaultWorkload, "workloadName tag attached to submitted queries")
	rootCmd.PersistentFlags().Int("batch-size", 0, "rows fetched per pagination call (0 = server default)")
	rootCmd.PersistentFlags().Int("max-polls", 0, "maximum status polls before giving up (0 = unbounded)")
	rootCmd.PersistentFlags().Int("timeout", 0, "per-request HTTP timeout in seconds (0 = default)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path (default: stderr; never stdout)")

	_ = viper.BindPFlag("auth.org", rootCmd.PersistentFlags().Lookup("org"))
	_ = viper.BindPFlag("auth.token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("auth.instance_url", rootCmd.PersistentFlags().Lookup("instance-url"))
	_ = viper.BindPFlag("auth.cache_path", rootCmd.PersistentFlags().Lookup("cache-path"))
	_ = viper.BindPFlag("auth.no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))

	_ = viper.BindPFlag("query.dataspace", rootCmd.PersistentFlags().Lookup("dataspace"))
	_ = viper.BindPFlag("query.workload", rootCmd.PersistentFlags().Lookup("workload"))
	_ = viper.BindPFlag("query.batch_size", rootCmd.PersistentFlags().Lookup("batch-size"))
	_ = viper.BindPFlag("query.max_polls", rootCmd.PersistentFlags().Lookup("max-polls"))
	_ = viper.BindPFlag("query.timeout_seconds", rootCmd.PersistentFlags().Lookup("timeout"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
