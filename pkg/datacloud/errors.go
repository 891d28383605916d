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
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorKind classifies a query-protocol failure so callers can branch on
// the failure category rather than string-matching messages.
type ErrorKind string

const (
	// KindTransport marks connection-level failures: DNS, refused
	// connections, timeouts. These carry status code 0.
	KindTransport ErrorKind = "transport"

	// KindAPI marks HTTP >=400 responses from the service, with the
	// message extracted from the error envelope.
	KindAPI ErrorKind = "api"

	// KindProtocol marks responses that are well-formed HTTP but violate
	// the query protocol: a submission without a query id, or a rows page
	// with zero rows while rows are still owed.
	KindProtocol ErrorKind = "protocol"
)

// Reason phrases attached to errors the client itself raises.
const (
	ReasonRequestError   = "RequestError"
	ReasonMissingQueryID = "MissingQueryId"
	ReasonMissingRows    = "MissingRows"
)

// Error is a typed query-protocol failure carrying the normalized
// (status, reason, message) triple. Status code and reason are preserved
// even when a message was successfully extracted from the body.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Reason     string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("datacloud: %s (status %d, %s)", e.Message, e.StatusCode, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether the failure happened below HTTP: the request
// never produced a response.
func (e *Error) IsTransport() bool {
	return e.Kind == KindTransport
}

// IsProtocolViolation reports whether the service's response broke the
// query protocol, as opposed to returning a normal business error.
func (e *Error) IsProtocolViolation() bool {
	return e.Kind == KindProtocol
}

// newTransportError wraps a connection-level failure.
func newTransportError(err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Reason:  ReasonRequestError,
		Message: err.Error(),
		Err:     err,
	}
}

// newProtocolViolation marks a response that breaks the query protocol.
// The service answered, so status 500 stands in for "server misbehaved".
func newProtocolViolation(reason, message string) *Error {
	return &Error{
		Kind:       KindProtocol,
		StatusCode: 500,
		Reason:     reason,
		Message:    message,
	}
}

// decodeAPIError turns a >=400 response into a typed error, extracting the
// message from the service's error envelope.
func decodeAPIError(statusCode int, reason string, body []byte) *Error {
	return &Error{
		Kind:       KindAPI,
		StatusCode: statusCode,
		Reason:     reason,
		Message:    extractErrorMessage(body),
	}
}

// extractErrorMessage normalizes the service's heterogeneous error
// envelope. Two shapes are observed on error responses:
//
//  1. a JSON array whose first element carries a "message" field that is
//     itself a JSON-encoded string describing the structured error;
//  2. a plain JSON object with "message" or "error" fields.
//
// Anything else falls back to the raw body text.
func extractErrorMessage(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return ""
	}

	var arr []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &arr); err == nil && len(arr) > 0 {
		if arr[0].Message == "" {
			return raw
		}
		// The outer message often encodes the structured error one level
		// deeper as a JSON string.
		var inner struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(arr[0].Message), &inner); err == nil && inner.Message != "" {
			return inner.Message
		}
		return arr[0].Message
	}

	var obj struct {
		Message string `json:"message"`
		ErrMsg  string `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.ErrMsg != "" {
			return obj.ErrMsg
		}
	}

	return raw
}
