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

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// cliRefreshInterval is how long a token read from the CLI is reused before
// the CLI is consulted again. The CLI manages the token's real lifetime; this
// only avoids spawning a subprocess per request.
const cliRefreshInterval = 60 * time.Second

// defaultCLITimeout bounds a single CLI invocation.
const defaultCLITimeout = 30 * time.Second

// CLISourceConfig configures a CLISource.
type CLISourceConfig struct {
	// Org is the target org alias or username. Empty selects the CLI's
	// default org.
	Org string

	// Path is the CLI executable. Default "sf".
	Path string

	// Timeout bounds each CLI invocation. Default 30s.
	Timeout time.Duration

	// Logger for CLI operations.
	Logger *zap.Logger
}

// CLISource reads credentials from the Salesforce CLI's credential store by
// running `sf org display --json`. Users authenticate orgs with
// `sf org login web`; this adapter never stores credentials itself.
//
// CLISource implements both PlatformSource (feeding the Broker's token
// exchange) and CredentialSource (for endpoints that accept the platform
// token directly).
type CLISource struct {
	org     string
	path    string
	timeout time.Duration
	logger  *zap.Logger

	// run is injected for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu        sync.Mutex
	token     string
	url       string
	fetchedAt time.Time
}

var (
	_ PlatformSource   = (*CLISource)(nil)
	_ CredentialSource = (*CLISource)(nil)
)

// NewCLISource creates a CLI-backed credential source. It fails fast when
// the CLI executable cannot be found.
func NewCLISource(cfg CLISourceConfig) (*CLISource, error) {
	if cfg.Path == "" {
		cfg.Path = "sf"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCLITimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if _, err := exec.LookPath(cfg.Path); err != nil {
		return nil, fmt.Errorf("salesforce CLI not found in PATH: %w (install from https://developer.salesforce.com/tools/salesforcecli)", err)
	}

	return &CLISource{
		org:     cfg.Org,
		path:    cfg.Path,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}, nil
}

// orgDisplay is the subset of `sf org display --json` output this adapter
// consumes.
type orgDisplay struct {
	Status int `json:"status"`
	Result struct {
		AccessToken     string `json:"accessToken"`
		InstanceURL     string `json:"instanceUrl"`
		Username        string `json:"username"`
		Alias           string `json:"alias"`
		ConnectedStatus string `json:"connectedStatus"`
	} `json:"result"`
}

// BearerToken implements PlatformSource.
func (s *CLISource) BearerToken(ctx context.Context) (string, error) {
	token, _, err := s.access(ctx)
	return token, err
}

// BaseURL implements PlatformSource.
func (s *CLISource) BaseURL(ctx context.Context) (string, error) {
	_, url, err := s.access(ctx)
	return url, err
}

// Token implements CredentialSource.
func (s *CLISource) Token(ctx context.Context) (string, error) {
	return s.BearerToken(ctx)
}

// InstanceURL implements CredentialSource.
func (s *CLISource) InstanceURL(ctx context.Context) (string, error) {
	return s.BaseURL(ctx)
}

// Org returns the configured target org ("" means the CLI default).
func (s *CLISource) Org() string {
	return s.org
}

func (s *CLISource) access(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Since(s.fetchedAt) < cliRefreshInterval {
		return s.token, s.url, nil
	}

	args := []string{"org", "display", "--json"}
	if s.org != "" {
		args = append(args, "-o", s.org)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Debug("running salesforce CLI", zap.String("path", s.path), zap.Strings("args", args))
	out, err := s.run(cctx, s.path, args...)
	if err != nil {
		return "", "", fmt.Errorf("sf org display failed: %w", err)
	}

	var display orgDisplay
	if err := json.Unmarshal(out, &display); err != nil {
		return "", "", fmt.Errorf("sf org display returned invalid JSON: %w", err)
	}
	if display.Result.AccessToken == "" || display.Result.InstanceURL == "" {
		return "", "", fmt.Errorf("sf org display returned no credentials for org %q (authenticate with: sf org login web)", s.org)
	}

	s.token = display.Result.AccessToken
	s.url = display.Result.InstanceURL
	s.fetchedAt = time.Now()
	s.logger.Info("read credentials from salesforce CLI",
		zap.String("username", display.Result.Username),
		zap.String("instance_url", s.url))
	return s.token, s.url, nil
}

// StaticSource is a fixed token and base URL, for configuration-supplied
// credentials and tests. It implements both PlatformSource and
// CredentialSource.
type StaticSource struct {
	TokenValue string
	URL        string
}

var (
	_ PlatformSource   = (*StaticSource)(nil)
	_ CredentialSource = (*StaticSource)(nil)
)

// BearerToken implements PlatformSource.
func (s *StaticSource) BearerToken(context.Context) (string, error) {
	if s.TokenValue == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return s.TokenValue, nil
}

// BaseURL implements PlatformSource.
func (s *StaticSource) BaseURL(context.Context) (string, error) {
	if s.URL == "" {
		return "", fmt.Errorf("no instance URL configured")
	}
	return s.URL, nil
}

// Token implements CredentialSource.
func (s *StaticSource) Token(ctx context.Context) (string, error) {
	return s.BearerToken(ctx)
}

// InstanceURL implements CredentialSource.
func (s *StaticSource) InstanceURL(ctx context.Context) (string, error) {
	return s.BaseURL(ctx)
}
