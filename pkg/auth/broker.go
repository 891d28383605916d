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
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// exchangePath is the tenant token-exchange endpoint, relative to the
	// platform instance URL.
	exchangePath = "/services/a360/token"

	// exchangeGrantType is the OAuth token-exchange grant for Data Cloud.
	exchangeGrantType = "urn:salesforce:grant-type:external:cdp"

	// exchangeSubjectTokenType identifies the presented platform token.
	exchangeSubjectTokenType = "urn:ietf:params:oauth:token-type:access_token"

	// defaultExpiryWindow is the lifetime assigned to an exchanged
	// credential. The exchange response carries no reliable expiry field,
	// so the broker assumes the nominal 120-minute token lifetime minus a
	// safety margin to avoid racing expiry mid-request.
	defaultExpiryWindow = 110 * time.Minute

	// defaultExchangeTimeout bounds the exchange HTTP call.
	defaultExchangeTimeout = 120 * time.Second
)

// BrokerConfig configures a Broker.
type BrokerConfig struct {
	// Platform supplies the base platform credential. Required.
	Platform PlatformSource

	// ClientID fingerprints the client identity. Cached credentials minted
	// under a different client identity are ignored.
	ClientID string

	// Cache persists exchanged credentials across processes. Optional.
	Cache *Cache

	// ExpiryWindow overrides the assigned credential lifetime. Default 110m.
	ExpiryWindow time.Duration

	// Timeout bounds the exchange HTTP call. Default 120s.
	Timeout time.Duration

	// Logger for broker operations.
	Logger *zap.Logger
}

// exchangeResponse is the token-exchange response body.
type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

// Broker owns the two-legged authentication flow: it obtains a platform
// credential from its PlatformSource and exchanges it for a tenant-scoped
// credential, caching the result in memory (and optionally on disk) until
// the safety-window expiry passes.
//
// Broker implements CredentialSource, so it plugs directly into the
// authenticated transport.
type Broker struct {
	platform PlatformSource
	clientID string
	cache    *Cache
	window   time.Duration
	client   *http.Client
	logger   *zap.Logger

	// now is injected for expiry tests.
	now func() time.Time

	mu   sync.Mutex
	cred Credential
}

// Compile-time interface check
var _ CredentialSource = (*Broker)(nil)

// NewBroker creates a token broker.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if cfg.Platform == nil {
		return nil, fmt.Errorf("Platform source is required")
	}
	if cfg.ExpiryWindow == 0 {
		cfg.ExpiryWindow = defaultExpiryWindow
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultExchangeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Broker{
		platform: cfg.Platform,
		clientID: cfg.ClientID,
		cache:    cfg.Cache,
		window:   cfg.ExpiryWindow,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
		now:      time.Now,
	}, nil
}

// EnsureValid returns a usable tenant credential, performing the two-leg
// exchange when the in-memory and cached credentials are absent or expired.
// Safe to call concurrently; at most one exchange runs at a time.
func (b *Broker) EnsureValid(ctx context.Context) (Credential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.cred.Usable(now, b.clientID) {
		return b.cred, nil
	}
	b.cred = Credential{}

	if b.cache != nil {
		if cred, ok := b.cache.Load(b.clientID, now); ok {
			b.cred = cred
			return cred, nil
		}
	}

	cred, err := b.exchange(ctx)
	if err != nil {
		return Credential{}, err
	}
	b.cred = cred

	if b.cache != nil {
		if err := b.cache.Save(cred); err != nil {
			// Cache failures never block a successful exchange.
			b.logger.Warn("failed to persist credential", zap.Error(err))
		}
	}
	return cred, nil
}

// Invalidate drops the in-memory credential, forcing the next EnsureValid
// to consult the cache or re-exchange. Used when switching target tenants.
func (b *Broker) Invalidate() {
	b.mu.Lock()
	b.cred = Credential{}
	b.mu.Unlock()
}

// Token implements CredentialSource.
func (b *Broker) Token(ctx context.Context) (string, error) {
	cred, err := b.EnsureValid(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

// InstanceURL implements CredentialSource.
func (b *Broker) InstanceURL(ctx context.Context) (string, error) {
	cred, err := b.EnsureValid(ctx)
	if err != nil {
		return "", err
	}
	return cred.InstanceURL, nil
}

// exchange performs both legs of the authentication flow. Caller holds b.mu.
func (b *Broker) exchange(ctx context.Context) (Credential, error) {
	platformToken, err := b.platform.BearerToken(ctx)
	if err != nil {
		return Credential{}, &Error{Stage: "platform", Message: "failed to obtain platform token", Err: err}
	}
	baseURL, err := b.platform.BaseURL(ctx)
	if err != nil {
		return Credential{}, &Error{Stage: "platform", Message: "failed to obtain platform instance URL", Err: err}
	}

	form := url.Values{}
	form.Set("grant_type", exchangeGrantType)
	form.Set("subject_token", platformToken)
	form.Set("subject_token_type", exchangeSubjectTokenType)

	exchangeURL := strings.TrimRight(baseURL, "/") + exchangePath
	b.logger.Info("exchanging platform token for tenant credential", zap.String("url", exchangeURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exchangeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, &Error{Stage: "exchange", Message: "failed to build exchange request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Credential{}, &Error{Stage: "exchange", Message: "exchange request failed", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		// Log the body for diagnosis; the typed error carries a summary.
		b.logger.Error("tenant token exchange failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return Credential{}, &Error{
			Stage:      "exchange",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var er exchangeResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return Credential{}, &Error{Stage: "exchange", Message: "exchange response is not valid JSON", Err: err}
	}
	if er.AccessToken == "" || er.InstanceURL == "" {
		return Credential{}, &Error{Stage: "exchange", Message: "exchange response missing access_token or instance_url"}
	}

	cred := Credential{
		Token:       er.AccessToken,
		Expiry:      b.now().Add(b.window),
		InstanceURL: er.InstanceURL,
		ClientID:    b.clientID,
	}
	b.logger.Info("obtained tenant credential",
		zap.String("instance_url", cred.InstanceURL),
		zap.Time("expiry", cred.Expiry))
	return cred, nil
}
