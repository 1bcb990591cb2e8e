package main

import (
	"fmt"
	"os/exec"
	"testing"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/lock"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("acquiring: %w", lock.ErrLocked), 2},
		{fmt.Errorf("loading: %w", config.ErrInvalid), 3},
		{errVerifyFailed, 4},
		{fmt.Errorf("starting claude: %w", exec.ErrNotFound), 5},
		{fmt.Errorf("anything else"), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{
		"serve", "init", "evolve", "analyze", "improve", "scout",
		"status", "progress", "history", "proposals", "update",
	} {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
