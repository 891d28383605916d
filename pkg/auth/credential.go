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

// Package auth implements credential acquisition for Salesforce Data Cloud:
// a platform-credential boundary, the tenant token-exchange broker, and a
// file-backed credential cache.
package auth

import (
	"context"
	"fmt"
	"time"
)

// Credential is a tenant-scoped bearer credential for the Data Cloud APIs.
type Credential struct {
	// Token is the opaque bearer token.
	Token string

	// Expiry is the absolute time after which the token must not be used.
	Expiry time.Time

	// InstanceURL is the API base URL the token is valid against.
	InstanceURL string

	// ClientID fingerprints the client identity that produced the token.
	// A credential minted under a different client identity is invalid
	// regardless of expiry.
	ClientID string
}

// Usable reports whether the credential can be presented right now for the
// given client identity.
func (c Credential) Usable(now time.Time, clientID string) bool {
	if c.Token == "" {
		return false
	}
	if c.ClientID != "" && clientID != "" && c.ClientID != clientID {
		return false
	}
	return now.Before(c.Expiry)
}

// CredentialSource supplies a valid bearer token and the API base URL it is
// scoped to. Both the token Broker and CLI-integrated adapters implement it;
// consumers (the authenticated transport) depend only on this interface.
type CredentialSource interface {
	// Token returns a currently valid bearer token, refreshing if needed.
	Token(ctx context.Context) (string, error)

	// InstanceURL returns the API base URL matching the token.
	InstanceURL(ctx context.Context) (string, error)
}

// PlatformSource supplies the base platform credential that the Broker
// exchanges for a tenant-scoped credential. How the platform credential is
// obtained (interactive login, CLI credential store, static config) is
// outside this package's concern.
type PlatformSource interface {
	// BearerToken returns a platform-level bearer token.
	BearerToken(ctx context.Context) (string, error)

	// BaseURL returns the platform instance URL that issued the token.
	BaseURL(ctx context.Context) (string, error)
}

// Error is a typed authentication failure. It is raised before any
// query-protocol call is attempted: either the platform credential could not
// be obtained or the token-exchange call failed.
type Error struct {
	// Stage is "platform" or "exchange".
	Stage string

	// StatusCode is the HTTP status of a failed exchange call, 0 otherwise.
	StatusCode int

	// Message describes the failure.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed (%s, status %d): %s", e.Stage, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authentication failed (%s): %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
