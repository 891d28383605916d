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
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/datacloud-labs/datacloud-mcp/pkg/auth"
)

const (
	// DefaultConfigFileName is the config file base name (yaml).
	DefaultConfigFileName = "datacloud-mcp"

	// keyringTokenName is the keyring entry holding a static platform token.
	keyringTokenName = "platform_token"

	// defaultWorkload tags queries submitted by this process.
	defaultWorkload = "datacloud-mcp-query"
)

// Config holds all configuration for datacloud-mcp.
// Priority: CLI flags > config file > env vars > defaults.
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	Query   QueryConfig   `mapstructure:"query"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AuthConfig selects the platform credential source and token cache.
type AuthConfig struct {
	// Org is the Salesforce CLI org alias or username. Empty uses the
	// CLI's default org.
	Org string `mapstructure:"org"`

	// Token is a static platform access token. When set together with
	// InstanceURL, the Salesforce CLI is not invoked.
	Token string `mapstructure:"token"`

	// InstanceURL is the platform instance URL paired with Token.
	InstanceURL string `mapstructure:"instance_url"`

	// CachePath overrides the tenant token cache location.
	CachePath string `mapstructure:"cache_path"`

	// NoCache disables the on-disk tenant token cache.
	NoCache bool `mapstructure:"no_cache"`
}

// QueryConfig tunes query submission and pagination.
type QueryConfig struct {
	Dataspace      string `mapstructure:"dataspace"`
	Workload       string `mapstructure:"workload"`
	BatchSize      int    `mapstructure:"batch_size"`
	MaxPolls       int    `mapstructure:"max_polls"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DataDir returns the datacloud-mcp state directory, honoring
// DATACLOUD_MCP_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("DATACLOUD_MCP_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".datacloud-mcp"
	}
	return filepath.Join(home, ".datacloud-mcp")
}

// LoadConfig reads configuration from file, environment, and keyring.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(DataDir())
		viper.AddConfigPath(".")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// No config file; defaults + env vars + flags.
	}

	viper.SetEnvPrefix("DATACLOUD_MCP")
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Keyring fallback for the static token. Non-fatal: the keyring may
	// be unavailable, and the CLI source needs no token at all.
	if config.Auth.Token == "" {
		if token, ok, err := auth.SecretFromKeyring(keyringTokenName); err == nil && ok {
			config.Auth.Token = token
		}
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("query.dataspace", "default")
	viper.SetDefault("query.workload", defaultWorkload)
	viper.SetDefault("logging.level", "info")
}
