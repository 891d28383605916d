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

// Package server implements a Model Context Protocol (MCP) server: a
// JSON-RPC dispatcher with provider interfaces for exposing tools and
// resources to MCP clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/protocol"
	"github.com/datacloud-labs/datacloud-mcp/pkg/mcp/transport"
)

// MethodHandler processes a JSON-RPC method call. params is the raw JSON
// params from the request.
type MethodHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// MCPServer dispatches JSON-RPC method calls to registered handlers.
type MCPServer struct {
	info         protocol.Implementation
	capabilities protocol.ServerCapabilities
	handlers     map[string]MethodHandler
	logger       *zap.Logger

	mu         sync.RWMutex
	clientInfo *protocol.Implementation // stored after initialize
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithToolProvider registers a ToolProvider and enables the tools
// capability.
func WithToolProvider(p ToolProvider) Option {
	return func(s *MCPServer) {
		s.capabilities.Tools = &protocol.ToolsCapability{}
		s.RegisterHandler("tools/list", newToolsListHandler(p))
		s.RegisterHandler("tools/call", newToolsCallHandler(p))
	}
}

// WithResourceProvider registers a ResourceProvider and enables the
// resources capability.
func WithResourceProvider(p ResourceProvider) Option {
	return func(s *MCPServer) {
		s.capabilities.Resources = &protocol.ResourcesCapability{}
		s.RegisterHandler("resources/list", newResourcesListHandler(p))
		s.RegisterHandler("resources/read", newResourcesReadHandler(p))
	}
}

// NewMCPServer creates an MCP server with the given identity and options.
func NewMCPServer(name, version string, logger *zap.Logger, opts ...Option) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &MCPServer{
		info:     protocol.Implementation{Name: name, Version: version},
		handlers: make(map[string]MethodHandler),
		logger:   logger,
	}

	s.RegisterHandler("initialize", s.handleInitialize)
	s.RegisterHandler("notifications/initialized", s.handleInitialized)
	s.RegisterHandler("ping", s.handlePing)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandler registers a handler for a JSON-RPC method.
func (s *MCPServer) RegisterHandler(method string, handler MethodHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// HandleMessage processes one JSON-RPC message and returns the response
// bytes, or nil for notifications.
func (s *MCPServer) HandleMessage(ctx context.Context, msg []byte) ([]byte, error) {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return marshalResponse(nil, nil, protocol.NewError(protocol.ParseError, "invalid JSON", nil))
	}
	if err := protocol.ValidateRequest(&req); err != nil {
		return marshalResponse(nil, nil, protocol.NewError(protocol.InvalidRequest, err.Error(), nil))
	}

	s.logger.Debug("handling request", zap.String("method", req.Method), zap.Stringer("id", req.ID))
	start := time.Now()

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		if req.ID == nil {
			// Unknown notification, ignore silently.
			return nil, nil
		}
		return marshalResponse(req.ID, nil, protocol.NewError(protocol.MethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil))
	}

	result, err := handler(ctx, req.Params)
	duration := time.Since(start)

	if err != nil {
		s.logger.Warn("handler error",
			zap.String("method", req.Method),
			zap.Duration("duration", duration),
			zap.Error(err))
		if req.ID == nil {
			return nil, nil
		}
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			return marshalResponse(req.ID, nil, rpcErr)
		}
		return marshalResponse(req.ID, nil, protocol.NewError(protocol.InternalError, err.Error(), nil))
	}

	s.logger.Debug("request handled",
		zap.String("method", req.Method),
		zap.Duration("duration", duration))

	if req.ID == nil {
		return nil, nil
	}
	return marshalResponse(req.ID, result, nil)
}

// Serve runs the read-handle-respond loop on the given transport until the
// context is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, t transport.Transport) error {
	s.logger.Info("MCP server starting",
		zap.String("name", s.info.Name),
		zap.String("version", s.info.Version))

	for {
		msg, err := t.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("MCP server stopping (context cancelled)")
				return ctx.Err()
			}
			return fmt.Errorf("receive error: %w", err)
		}

		resp, err := s.HandleMessage(ctx, msg)
		if err != nil {
			s.logger.Error("handle error", zap.Error(err))
			continue
		}
		if resp == nil {
			continue
		}
		if err := t.Send(ctx, resp); err != nil {
			return fmt.Errorf("send error: %w", err)
		}
	}
}

func (s *MCPServer) handleInitialize(_ context.Context, params json.RawMessage) (interface{}, error) {
	var initParams protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, protocol.NewError(protocol.InvalidParams,
				fmt.Sprintf("invalid initialize params: %v", err), nil)
		}
	}

	if initParams.ProtocolVersion != "" && initParams.ProtocolVersion != protocol.ProtocolVersion {
		s.logger.Warn("client protocol version mismatch",
			zap.String("client_version", initParams.ProtocolVersion),
			zap.String("server_version", protocol.ProtocolVersion))
	}

	if initParams.ClientInfo.Name != "" {
		s.mu.Lock()
		info := initParams.ClientInfo
		s.clientInfo = &info
		s.mu.Unlock()
		s.logger.Info("client connected",
			zap.String("client_name", initParams.ClientInfo.Name),
			zap.String("client_version", initParams.ClientInfo.Version))
	}

	return protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      s.info,
	}, nil
}

func (s *MCPServer) handleInitialized(_ context.Context, _ json.RawMessage) (interface{}, error) {
	s.logger.Debug("client initialized")
	return nil, nil
}

func (s *MCPServer) handlePing(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

// ClientInfo returns the connected client's information, or nil before
// initialize.
func (s *MCPServer) ClientInfo() *protocol.Implementation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// marshalResponse creates a JSON-RPC response.
func marshalResponse(id *protocol.RequestID, result interface{}, rpcErr *protocol.Error) ([]byte, error) {
	resp := protocol.Response{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
	if result != nil {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resp.Result = resultBytes
	}
	return json.Marshal(resp)
}
