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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datacloud-labs/datacloud-mcp/pkg/auth"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage datacloud-mcp configuration and secrets",
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Save a static platform token to the system keyring",
	Long: `Save a static platform access token to the system keyring.
The token is read from stdin so it never appears in shell history.`,
	Args: cobra.NoArgs,
	RunE: runConfigSetToken,
}

var configGetTokenCmd = &cobra.Command{
	Use:   "get-token",
	Short: "Check whether a platform token is stored in the keyring",
	Args:  cobra.NoArgs,
	RunE:  runConfigGetToken,
}

var configDeleteTokenCmd = &cobra.Command{
	Use:   "delete-token",
	Short: "Remove the platform token from the system keyring",
	Args:  cobra.NoArgs,
	RunE:  runConfigDeleteToken,
}

var configClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete the on-disk tenant token cache",
	Args:  cobra.NoArgs,
	RunE:  runConfigClearCache,
}

func init() {
	configCmd.AddCommand(configSetTokenCmd)
	configCmd.AddCommand(configGetTokenCmd)
	configCmd.AddCommand(configDeleteTokenCmd)
	configCmd.AddCommand(configClearCacheCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigSetToken(cmd *cobra.Command, args []string) error {
	fmt.Fprint(os.Stderr, "Paste platform token: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	if err := auth.SecretToKeyring(keyringTokenName, token); err != nil {
		return fmt.Errorf("save to keyring: %w", err)
	}
	fmt.Println("Saved platform token to system keyring")
	return nil
}

func runConfigGetToken(cmd *cobra.Command, args []string) error {
	_, ok, err := auth.SecretFromKeyring(keyringTokenName)
	if err != nil {
		return fmt.Errorf("read keyring: %w", err)
	}
	if !ok {
		fmt.Println("No platform token stored. Set one with: datacloud-mcp config set-token")
		return nil
	}
	fmt.Println("Platform token present in system keyring")
	return nil
}

func runConfigDeleteToken(cmd *cobra.Command, args []string) error {
	if err := auth.SecretDeleteKeyring(keyringTokenName); err != nil {
		return fmt.Errorf("delete from keyring: %w", err)
	}
	fmt.Println("Deleted platform token from system keyring")
	return nil
}

func runConfigClearCache(cmd *cobra.Command, args []string) error {
	path := config.Auth.CachePath
	if path == "" {
		path = auth.DefaultCachePath()
	}
	cache := auth.NewCache(path, nil)
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Printf("Cleared tenant token cache at %s\n", path)
	return nil
}
