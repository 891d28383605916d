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

// Package datacloud implements the Salesforce Data Cloud SQL query
// protocol: submitting a query, long-polling its status until a terminal
// completion status, and draining the paginated rows endpoint into an
// ordered result set. It also carries the authenticated transport and the
// service's error-envelope decoding.
package datacloud

import (
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/datacloud-labs/datacloud-mcp/pkg/auth"
)

const (
	// defaultAPIPrefix is the Connect API root the query endpoints live
	// under, relative to the tenant instance URL.
	defaultAPIPrefix = "/services/data/v63.0/ssot"

	// defaultDataspace is the tenant's default data partition.
	defaultDataspace = "default"

	// defaultBatchSize is the rowLimit used when draining the rows
	// endpoint.
	defaultBatchSize = 100000

	// defaultWaitTimeMs is the long-poll hint sent on status polls: the
	// server may hold the connection up to this long before answering.
	defaultWaitTimeMs = 10000
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Credentials supplies the bearer token and tenant base URL. Required.
	Credentials auth.CredentialSource

	// Dataspace is the data partition queries run against. Default
	// "default".
	Dataspace string

	// Workload optionally tags submitted queries for server-side workload
	// attribution. Empty omits the parameter.
	Workload string

	// APIPrefix overrides the Connect API root. Default
	// "/services/data/v63.0/ssot".
	APIPrefix string

	// BatchSize is the rowLimit per rows-fetch call. Default 100000.
	BatchSize int

	// WaitTimeMs is the long-poll window hint in milliseconds. Default
	// 10000.
	WaitTimeMs int

	// MaxPolls caps status-poll iterations as a safety valve against a
	// stuck server. 0 means poll until the server reports a terminal
	// status.
	MaxPolls int

	// Timeout bounds each HTTP call. Default 120s.
	Timeout time.Duration

	// Logger for query lifecycle logging.
	Logger *zap.Logger
}

// Session is a connection to one tenant and dataspace. It owns the
// authenticated transport and the query orchestration; one Session may run
// many queries, concurrently or sequentially.
type Session struct {
	transport  *Transport
	dataspace  string
	workload   string
	apiPrefix  string
	batchSize  int
	waitTimeMs int
	maxPolls   int
	logger     *zap.Logger
}

// NewSession creates a tenant session over the given credential source.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("Credentials source is required")
	}
	if cfg.Dataspace == "" {
		cfg.Dataspace = defaultDataspace
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = defaultAPIPrefix
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.WaitTimeMs <= 0 {
		cfg.WaitTimeMs = defaultWaitTimeMs
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Session{
		transport:  NewTransport(cfg.Credentials, TransportConfig{Timeout: cfg.Timeout, Logger: cfg.Logger}),
		dataspace:  cfg.Dataspace,
		workload:   cfg.Workload,
		apiPrefix:  cfg.APIPrefix,
		batchSize:  cfg.BatchSize,
		waitTimeMs: cfg.WaitTimeMs,
		maxPolls:   cfg.MaxPolls,
		logger:     cfg.Logger,
	}, nil
}

// Dataspace returns the data partition this session queries.
func (s *Session) Dataspace() string {
	return s.dataspace
}

// queryParams returns the dataspace/workload parameters every query call
// carries.
func (s *Session) queryParams() url.Values {
	params := url.Values{}
	params.Set("dataspace", s.dataspace)
	if s.workload != "" {
		params.Set("workloadName", s.workload)
	}
	return params
}
