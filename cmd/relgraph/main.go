// Command relgraph builds GraphQL models and compiles or runs operations
// against SQLite.
//
// Usage:
//
//	relgraph [flags] <command>
//
// Commands:
//   - model: print the resolved model
//   - schema: print the expanded schema
//   - sql: print the statements of an operation
//   - migrate: apply the model to the database
//   - query: execute an operation
//   - watch: serve operations from stdin and reload the model on change
//
// Configuration is read from relgraph.yml; see package config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
