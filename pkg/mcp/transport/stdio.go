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

// Package transport implements the communication layer for the MCP server.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Transport defines the communication layer interface for MCP.
type Transport interface {
	// Send sends a message
	Send(ctx context.Context, message []byte) error

	// Receive receives the next message (blocking)
	Receive(ctx context.Context) ([]byte, error)

	// Close closes the transport
	Close() error
}

// readResult holds the result of a single line read from the reader.
type readResult struct {
	data []byte
	err  error
}

// StdioTransport implements Transport over a reader/writer pair, typically
// os.Stdin and os.Stdout. Each message is one line of JSON terminated by a
// newline.
//
// A persistent goroutine owns the reads, so a Receive cancelled via context
// does not leak a goroutine or lose the in-flight line.
type StdioTransport struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex // protects writer and closed
	closed bool

	readCh chan readResult
	once   sync.Once
}

// NewStdioTransport creates a stdio transport over the given reader and
// writer.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReaderSize(r, 1024*1024), // 1MB buffer for large result rows
		writer: w,
		readCh: make(chan readResult, 1),
	}
}

func (t *StdioTransport) startReader() {
	t.once.Do(func() {
		go func() {
			defer close(t.readCh)
			for {
				line, err := t.reader.ReadBytes('\n')
				t.readCh <- readResult{data: line, err: err}
				if err != nil {
					return
				}
			}
		}()
	})
}

// Send writes a JSON-RPC message followed by a newline.
func (t *StdioTransport) Send(_ context.Context, message []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transport closed")
	}
	if _, err := t.writer.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if _, err := t.writer.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Receive reads the next message line, blocking until one is available or
// the context is cancelled. Empty lines are skipped.
func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	t.startReader()

	for {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, fmt.Errorf("transport closed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result, ok := <-t.readCh:
			if !ok {
				// Reader goroutine has exited after delivering its error.
				return nil, io.EOF
			}
			if result.err != nil {
				if result.err == io.EOF {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("read message: %w", result.err)
			}
			line := result.data
			if len(line) > 0 && line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
			}
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			if len(line) == 0 {
				continue
			}
			return line, nil
		}
	}
}

// Close marks the transport as closed. The underlying reader/writer are not
// closed; they are typically the process's stdin/stdout.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
