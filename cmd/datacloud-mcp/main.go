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

// datacloud-mcp is an MCP (Model Context Protocol) server that exposes
// Salesforce Data Cloud SQL queries as tools.
//
// It communicates with MCP clients (Claude Desktop, VS Code, ...) over
// stdio (JSON-RPC) and with Data Cloud over the Connect API, obtaining
// tenant tokens via the Salesforce CLI or a static platform token.
//
// Claude Desktop configuration (claude_desktop_config.json):
//
//	{
//	  "mcpServers": {
//	    "datacloud": {
//	      "command": "/path/to/datacloud-mcp",
//	      "args": ["serve", "--org", "my-org"]
//	    }
//	  }
//	}
package main

func main() {
	Execute()
}
