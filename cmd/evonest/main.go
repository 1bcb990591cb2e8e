// Evonest: autonomous code evolution MCP server.
//
// Evonest drives a target codebase through repeated Observe, Plan,
// Execute, Verify cycles using Claude Code as the engine. It runs as an
// MCP server over stdio for AI hosts, and every tool is also available
// as a subcommand for headless use.
//
// Usage:
//
//	evonest serve              # Start MCP server (stdio transport)
//	evonest evolve --cycles 3  # Run evolution cycles directly
//	evonest update             # Update to the latest version
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/lock"
	evoserver "github.com/HendryAvila/evonest/internal/server"
)

// errVerifyFailed is returned by run commands when at least one cycle
// failed verification; the run summary has already been printed.
var errVerifyFailed = errors.New("at least one cycle failed verification")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps well-known failures to stable codes for scripts: 2 lock
// held, 3 config invalid, 4 verify failed, 5 LM binary missing.
func exitCode(err error) int {
	switch {
	case errors.Is(err, lock.ErrLocked):
		return 2
	case errors.Is(err, config.ErrInvalid):
		return 3
	case errors.Is(err, errVerifyFailed):
		return 4
	case errors.Is(err, exec.ErrNotFound):
		return 5
	}
	return 1
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "evonest",
		Short:         "Autonomous code evolution engine",
		Long:          "Evonest evolves a codebase through Observe, Plan, Execute, Verify cycles\ndriven by Claude Code. Run 'evonest serve' to expose it as an MCP server,\nor use the subcommands directly.",
		Version:       evoserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newInitCmd(),
		newEvolveCmd(),
		newAnalyzeCmd(),
		newImproveCmd(),
		newScoutCmd(),
		newStatusCmd(),
		newProgressCmd(),
		newHistoryCmd(),
		newProposalsCmd(),
		newUpdateCmd(),
	)
	return root
}
