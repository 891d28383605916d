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
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newExchangeServer returns an httptest server that answers the token
// exchange endpoint and counts the exchanges it served.
func newExchangeServer(t *testing.T, count *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/services/a360/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:salesforce:grant-type:external:cdp", r.PostForm.Get("grant_type"))
		assert.Equal(t, "platform-token", r.PostForm.Get("subject_token"))
		assert.Equal(t, "urn:ietf:params:oauth:token-type:access_token", r.PostForm.Get("subject_token_type"))

		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tenant-token","instance_url":"https://tenant.example.com"}`))
	}))
}

func TestBrokerExchange(t *testing.T) {
	var exchanges atomic.Int32
	srv := newExchangeServer(t, &exchanges)
	defer srv.Close()

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
		ClientID: "client-a",
	})
	require.NoError(t, err)

	cred, err := broker.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenant-token", cred.Token)
	assert.Equal(t, "https://tenant.example.com", cred.InstanceURL)
	assert.Equal(t, "client-a", cred.ClientID)
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestBrokerReusesCredentialUntilExpiry(t *testing.T) {
	var exchanges atomic.Int32
	srv := newExchangeServer(t, &exchanges)
	defer srv.Close()

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
		ClientID: "client-a",
	})
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	broker.now = func() time.Time { return clock }

	ctx := context.Background()
	_, err = broker.EnsureValid(ctx)
	require.NoError(t, err)

	// Within the safety window no second exchange happens.
	clock = clock.Add(100 * time.Minute)
	_, err = broker.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), exchanges.Load())

	// Past the 110-minute window the broker re-exchanges.
	clock = clock.Add(11 * time.Minute)
	_, err = broker.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), exchanges.Load())
}

func TestBrokerUsesDiskCache(t *testing.T) {
	var exchanges atomic.Int32
	srv := newExchangeServer(t, &exchanges)
	defer srv.Close()

	cachePath := filepath.Join(t.TempDir(), "token.json")
	platform := &StaticSource{TokenValue: "platform-token", URL: srv.URL}

	first, err := NewBroker(BrokerConfig{
		Platform: platform,
		ClientID: "client-a",
		Cache:    NewCache(cachePath, nil),
	})
	require.NoError(t, err)
	_, err = first.EnsureValid(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), exchanges.Load())

	// A fresh broker sharing the cache file starts from the persisted
	// credential without contacting the exchange endpoint.
	second, err := NewBroker(BrokerConfig{
		Platform: platform,
		ClientID: "client-a",
		Cache:    NewCache(cachePath, nil),
	})
	require.NoError(t, err)
	cred, err := second.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenant-token", cred.Token)
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestBrokerIgnoresCacheFromOtherClient(t *testing.T) {
	var exchanges atomic.Int32
	srv := newExchangeServer(t, &exchanges)
	defer srv.Close()

	cachePath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, NewCache(cachePath, nil).Save(Credential{
		Token:       "stale-token",
		Expiry:      time.Now().Add(time.Hour),
		InstanceURL: "https://stale.example.com",
		ClientID:    "someone-else",
	}))

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
		ClientID: "client-a",
		Cache:    NewCache(cachePath, nil),
	})
	require.NoError(t, err)

	cred, err := broker.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenant-token", cred.Token)
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestBrokerInvalidate(t *testing.T) {
	var exchanges atomic.Int32
	srv := newExchangeServer(t, &exchanges)
	defer srv.Close()

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = broker.EnsureValid(ctx)
	require.NoError(t, err)
	broker.Invalidate()
	_, err = broker.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), exchanges.Load())
}

func TestBrokerExchangeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"expired access/refresh token"}`))
	}))
	defer srv.Close()

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
	})
	require.NoError(t, err)

	_, err = broker.EnsureValid(context.Background())
	require.Error(t, err)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "exchange", authErr.Stage)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Message, "invalid_grant")
}

func TestBrokerExchangeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":""}`))
	}))
	defer srv.Close()

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
	})
	require.NoError(t, err)

	_, err = broker.EnsureValid(context.Background())
	require.Error(t, err)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "exchange", authErr.Stage)
}

func TestBrokerPlatformFailure(t *testing.T) {
	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{}, // no token configured
	})
	require.NoError(t, err)

	_, err = broker.EnsureValid(context.Background())
	require.Error(t, err)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "platform", authErr.Stage)
}

func TestBrokerRequiresPlatformSource(t *testing.T) {
	_, err := NewBroker(BrokerConfig{})
	require.Error(t, err)
}

func TestBrokerTokenAndInstanceURL(t *testing.T) {
	var exchanges atomic.Int32
	srv := newExchangeServer(t, &exchanges)
	defer srv.Close()

	broker, err := NewBroker(BrokerConfig{
		Platform: &StaticSource{TokenValue: "platform-token", URL: srv.URL},
	})
	require.NoError(t, err)

	ctx := context.Background()
	token, err := broker.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-token", token)

	url, err := broker.InstanceURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.example.com", url)

	// Both calls share the one credential.
	assert.Equal(t, int32(1), exchanges.Load())
}
