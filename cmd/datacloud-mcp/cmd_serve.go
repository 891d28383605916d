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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datacloud-labs/datacloud-mcp/internal/version"
	"github.com/datacloud-labs/datacloud-mcp/pkg/auth"
	dcbackend "github.com/datacloud-labs/datacloud-mcp/pkg/backends/datacloud"
	"github.com/datacloud-labs/datacloud-mcp/pkg/datacloud"
	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/server"
	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/transport"
	"github.com/datacloud-labs/datacloud-mcp/pkg/tools"
)

const serverName = "datacloud-mcp"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long:  `Start the MCP server. It reads JSON-RPC from stdin and writes responses to stdout; logs go to stderr or --log-file.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(config.Logging)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting datacloud-mcp server",
		zap.String("version", version.Get()),
		zap.String("dataspace", config.Query.Dataspace),
	)

	provider, err := buildToolProvider(config, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	mcpServer := server.NewMCPServer(serverName, version.Get(), logger,
		server.WithToolProvider(provider),
		server.WithResourceProvider(provider),
	)

	stdio := transport.NewStdioTransport(os.Stdin, os.Stdout)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("MCP server ready, awaiting client on stdio")
	if err := mcpServer.Serve(ctx, stdio); err != nil {
		if ctx.Err() != nil || errors.Is(err, io.EOF) {
			logger.Info("server stopped gracefully")
			return nil
		}
		logger.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

// buildToolProvider wires the full stack: credential source, token broker,
// query session, execution backend, and the MCP tool provider.
func buildToolProvider(cfg *Config, logger *zap.Logger) (*tools.Provider, error) {
	session, org, err := buildSession(cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := dcbackend.NewBackend(dcbackend.Config{
		Session: session,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	return tools.NewProvider(backend, tools.ConnectionInfo{
		Org:       org,
		Dataspace: session.Dataspace(),
	}, logger)
}

// buildSession assembles the authentication chain and query session from
// config. It returns the org label used for connection info.
func buildSession(cfg *Config, logger *zap.Logger) (*datacloud.Session, string, error) {
	broker, org, err := buildBroker(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	session, err := datacloud.NewSession(datacloud.SessionConfig{
		Credentials: broker,
		Dataspace:   cfg.Query.Dataspace,
		Workload:    cfg.Query.Workload,
		BatchSize:   cfg.Query.BatchSize,
		MaxPolls:    cfg.Query.MaxPolls,
		Timeout:     time.Duration(cfg.Query.TimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}
	return session, org, nil
}

// buildBroker selects the platform credential source (static token or
// Salesforce CLI) and wraps it in a token broker with an optional on-disk
// cache.
func buildBroker(cfg *Config, logger *zap.Logger) (*auth.Broker, string, error) {
	var (
		platform auth.PlatformSource
		org      string
		clientID string
	)
	switch {
	case cfg.Auth.Token != "":
		if cfg.Auth.InstanceURL == "" {
			return nil, "", fmt.Errorf("--instance-url is required with a static token")
		}
		platform = &auth.StaticSource{TokenValue: cfg.Auth.Token, URL: cfg.Auth.InstanceURL}
		clientID = "static"
	default:
		src, err := auth.NewCLISource(auth.CLISourceConfig{
			Org:    cfg.Auth.Org,
			Logger: logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("salesforce cli source: %w", err)
		}
		platform = src
		org = cfg.Auth.Org
		clientID = "sf-cli:" + cfg.Auth.Org
	}

	var cache *auth.Cache
	if !cfg.Auth.NoCache {
		path := cfg.Auth.CachePath
		if path == "" {
			path = auth.DefaultCachePath()
		}
		cache = auth.NewCache(path, logger)
	}

	broker, err := auth.NewBroker(auth.BrokerConfig{
		Platform: platform,
		ClientID: clientID,
		Cache:    cache,
		Logger:   logger,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create broker: %w", err)
	}
	return broker, org, nil
}
