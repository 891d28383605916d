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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestCLISource builds a CLISource with a stubbed command runner,
// bypassing the PATH lookup NewCLISource performs.
func newTestCLISource(org string, run func(ctx context.Context, name string, args ...string) ([]byte, error)) *CLISource {
	return &CLISource{
		org:     org,
		path:    "sf",
		timeout: defaultCLITimeout,
		logger:  zap.NewNop(),
		run:     run,
	}
}

const cliDisplayOK = `{
  "status": 0,
  "result": {
    "accessToken": "cli-token",
    "instanceUrl": "https://org.my.salesforce.com",
    "username": "dev@example.com",
    "connectedStatus": "Connected"
  }
}`

func TestCLISourceReadsOrgDisplay(t *testing.T) {
	var gotArgs []string
	src := newTestCLISource("", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(cliDisplayOK), nil
	})

	token, err := src.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cli-token", token)

	url, err := src.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://org.my.salesforce.com", url)

	assert.Equal(t, []string{"sf", "org", "display", "--json"}, gotArgs)
}

func TestCLISourceTargetsNamedOrg(t *testing.T) {
	var gotArgs []string
	src := newTestCLISource("my-sandbox", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(cliDisplayOK), nil
	})

	_, err := src.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"org", "display", "--json", "-o", "my-sandbox"}, gotArgs)
}

func TestCLISourceMemoizes(t *testing.T) {
	calls := 0
	src := newTestCLISource("", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return []byte(cliDisplayOK), nil
	})

	ctx := context.Background()
	_, err := src.BearerToken(ctx)
	require.NoError(t, err)
	_, err = src.Token(ctx)
	require.NoError(t, err)
	_, err = src.InstanceURL(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "repeated reads within the refresh interval run the CLI once")
}

func TestCLISourceCommandFailure(t *testing.T) {
	src := newTestCLISource("", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, fmt.Errorf("exit status 1")
	})

	_, err := src.BearerToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf org display failed")
}

func TestCLISourceNotAuthenticated(t *testing.T) {
	src := newTestCLISource("", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"status":1,"result":{}}`), nil
	})

	_, err := src.BearerToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf org login web")
}

func TestCLISourceInvalidJSON(t *testing.T) {
	src := newTestCLISource("", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Warning: something\n"), nil
	})

	_, err := src.BearerToken(context.Background())
	require.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{TokenValue: "tok", URL: "https://x.example.com"}

	ctx := context.Background()
	token, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	url, err := src.InstanceURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://x.example.com", url)

	empty := &StaticSource{}
	_, err = empty.Token(ctx)
	assert.Error(t, err)
	_, err = empty.InstanceURL(ctx)
	assert.Error(t, err)
}
