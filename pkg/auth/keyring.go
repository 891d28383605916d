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
	"errors"

	"github.com/zalando/go-keyring"
)

// keyringService namespaces this tool's entries in the OS credential store.
const keyringService = "datacloud-mcp"

// SecretFromKeyring reads a named secret from the OS keyring. A missing
// entry returns ("", false, nil) so callers can fall back to other sources.
func SecretFromKeyring(name string) (string, bool, error) {
	v, err := keyring.Get(keyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// SecretToKeyring stores a named secret in the OS keyring.
func SecretToKeyring(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// SecretDeleteKeyring removes a named secret from the OS keyring. Deleting
// an absent entry is not an error.
func SecretDeleteKeyring(name string) error {
	err := keyring.Delete(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
