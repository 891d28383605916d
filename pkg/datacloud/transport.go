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

package datacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datacloud-labs/datacloud-mcp/pkg/auth"
)

// defaultRequestTimeout bounds every HTTP call the transport makes. Long
// polls hold the connection open server-side, so this stays comfortably
// above the long-poll window.
const defaultRequestTimeout = 120 * time.Second

// TransportConfig configures a Transport.
type TransportConfig struct {
	// Timeout bounds each HTTP call. Default 120s.
	Timeout time.Duration

	// Logger for request-level logging.
	Logger *zap.Logger
}

// Transport issues authenticated HTTP requests against the tenant API. It
// attaches the bearer token from its CredentialSource, separates
// connection-level failures from application-level >=400 responses, and
// normalizes empty bodies to a success sentinel (nil) instead of failing to
// parse them as JSON.
type Transport struct {
	creds  auth.CredentialSource
	client *http.Client
	logger *zap.Logger
}

// NewTransport creates an authenticated transport over the given
// credential source.
func NewTransport(creds auth.CredentialSource, cfg TransportConfig) *Transport {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Transport{
		creds:  creds,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
	}
}

// Do performs one authenticated request. path is relative to the
// credential's instance URL. A nil return body means the service answered
// with 2xx and no content.
//
// Error classification: credential failures propagate as-is (typically
// *auth.Error), connection-level failures surface as a transport *Error
// with status 0, and HTTP >=400 responses surface as an api *Error decoded
// from the error envelope.
func (t *Transport) Do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	token, err := t.creds.Token(ctx)
	if err != nil {
		return nil, err
	}
	base, err := t.creds.InstanceURL(ctx)
	if err != nil {
		return nil, err
	}

	fullURL := strings.TrimRight(base, "/") + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := uuid.NewString()
	logger := t.logger.With(zap.String("request_id", requestID))
	logger.Debug("api request", zap.String("method", method), zap.String("url", fullURL))

	resp, err := t.client.Do(req)
	if err != nil {
		logger.Warn("request failed before a response arrived", zap.Error(err))
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("failed to read response body", zap.Error(err))
		return nil, newTransportError(err)
	}

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), respBody)
		logger.Warn("api error response",
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return nil, apiErr
	}

	logger.Debug("api response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(respBody)))

	// 204 or an empty 2xx body is a legitimate success with no payload.
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	return respBody, nil
}
