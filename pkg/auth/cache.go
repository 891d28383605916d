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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// cacheFile is the on-disk representation of a cached credential.
// Field names are part of the wire contract with other implementations.
type cacheFile struct {
	Token       string `json:"token"`
	Exp         string `json:"exp"` // RFC 3339
	InstanceURL string `json:"instance_url"`
	ClientID    string `json:"client_id"`
}

// Cache persists one credential to a JSON file readable only by the owning
// user. Load treats every failure mode (missing file, unreadable file, bad
// JSON, bad timestamp) as "absent" rather than an error: the caller's
// recovery is always the same, re-authenticate.
type Cache struct {
	path   string
	logger *zap.Logger
}

// NewCache creates a credential cache at the given file path.
func NewCache(path string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{path: path, logger: logger}
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Load reads the cached credential. The second return is false when no
// usable credential exists: the file is absent or unreadable, the cached
// client identity differs from clientID, or the token is expired at now.
func (c *Cache) Load(clientID string, now time.Time) (Credential, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read credential cache", zap.String("path", c.path), zap.Error(err))
		}
		return Credential{}, false
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		c.logger.Warn("credential cache is not valid JSON, ignoring", zap.String("path", c.path), zap.Error(err))
		return Credential{}, false
	}

	if cf.ClientID != "" && clientID != "" && cf.ClientID != clientID {
		c.logger.Info("client identity changed, cached credential invalid",
			zap.String("cached_client_id", cf.ClientID))
		return Credential{}, false
	}

	exp, err := time.Parse(time.RFC3339, cf.Exp)
	if err != nil {
		c.logger.Warn("credential cache has unparseable expiry, ignoring", zap.String("exp", cf.Exp))
		return Credential{}, false
	}

	if !now.Before(exp) {
		c.logger.Info("cached credential expired", zap.Time("expiry", exp))
		return Credential{}, false
	}

	c.logger.Info("loaded cached credential", zap.Time("valid_until", exp))
	return Credential{
		Token:       cf.Token,
		Expiry:      exp,
		InstanceURL: cf.InstanceURL,
		ClientID:    cf.ClientID,
	}, true
}

// Save writes the credential with owner-only permissions. The write goes to
// a temporary file in the same directory followed by a rename, so a
// concurrent Load never observes a half-written file.
func (c *Cache) Save(cred Credential) error {
	cf := cacheFile{
		Token:       cred.Token,
		Exp:         cred.Expiry.Format(time.RFC3339),
		InstanceURL: cred.InstanceURL,
		ClientID:    cred.ClientID,
	}

	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("marshal credential cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credcache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache file into place: %w", err)
	}

	c.logger.Info("saved credential to cache", zap.String("path", c.path), zap.Time("expiry", cred.Expiry))
	return nil
}

// Clear removes the cache file. Missing files are not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// DefaultCachePath returns the default credential cache location,
// ~/.datacloud-mcp/token.json, falling back to the current directory when
// the home directory cannot be determined.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".datacloud-mcp", "token.json")
	}
	return filepath.Join(home, ".datacloud-mcp", "token.json")
}
