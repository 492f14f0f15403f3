// Command synk runs the scene reaction engine.
//
// Usage:
//
//	synk [--config path] <command>
//
// Commands:
//
//	serve    - serve the chat API, observability endpoints and Discord adapter
//	chat     - play a scene in the terminal
//	mcp      - expose the engine as MCP tools over stdio
//	migrate  - create the PostgreSQL schema and optionally import characters
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "synk:", err)
		os.Exit(1)
	}
}
