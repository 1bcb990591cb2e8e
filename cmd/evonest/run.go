package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/evonest/internal/config"
	"github.com/HendryAvila/evonest/internal/gitops"
	"github.com/HendryAvila/evonest/internal/improve"
	"github.com/HendryAvila/evonest/internal/lock"
	"github.com/HendryAvila/evonest/internal/orchestrator"
	"github.com/HendryAvila/evonest/internal/runner"
	"github.com/HendryAvila/evonest/internal/scout"
	"github.com/HendryAvila/evonest/internal/state"
	"github.com/HendryAvila/evonest/internal/templates"
)

// resolveProject turns the --project flag into an absolute path,
// defaulting to the current directory.
func resolveProject(project string) (string, error) {
	if project == "" {
		return os.Getwd()
	}
	return filepath.Abs(project)
}

// openProject loads the state and resolved configuration for an
// initialized project, applying an optional level override.
func openProject(project, level string) (*state.ProjectState, *config.Config, error) {
	dir, err := resolveProject(project)
	if err != nil {
		return nil, nil, err
	}
	st := state.New(dir)
	if !st.Initialized() {
		return nil, nil, fmt.Errorf("%s has no .evonest/ directory; run 'evonest init' first", dir)
	}
	cfg, err := config.Load(dir, nil)
	if err != nil {
		return nil, nil, err
	}
	if level != "" {
		if err := cfg.ApplyLevelOverride(level); err != nil {
			return nil, nil, err
		}
	}
	return st, cfg, nil
}

func addProjectFlag(cmd *cobra.Command, project *string) {
	cmd.Flags().StringVarP(project, "project", "p", "", "path to the target project (default: current directory)")
}

func newInitCmd() *cobra.Command {
	var project, level string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set a project up for evolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveProject(project)
			if err != nil {
				return err
			}
			res, err := templates.InitProject(cmd.Context(), dir, level, runner.New())
			if err != nil {
				return err
			}
			fmt.Println(res.Message())
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	cmd.Flags().StringVar(&level, "level", "standard", "intensity preset: quick, standard or deep")
	return cmd
}

func newEvolveCmd() *cobra.Command {
	var project, level string
	var opts orchestrator.Options
	var resumeToken string
	var cancel bool
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Run evolution cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openProject(project, level)
			if err != nil {
				return err
			}
			engine := orchestrator.New(st, cfg, runner.New(), gitops.New(st.Project))

			var msg string
			switch {
			case cancel:
				msg, err = engine.Cancel()
			case resumeToken != "":
				msg, err = engine.Resume(cmd.Context(), resumeToken)
			default:
				msg, err = engine.RunEvolve(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			fmt.Println(msg)
			if engine.VerifyFailed() {
				return errVerifyFailed
			}
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	cmd.Flags().StringVar(&level, "level", "", "intensity preset override: quick, standard or deep")
	cmd.Flags().IntVarP(&opts.Cycles, "cycles", "n", 0, "number of cycles (default: from config)")
	cmd.Flags().BoolVar(&opts.NoMeta, "no-meta", false, "skip meta-observation this run")
	cmd.Flags().BoolVar(&opts.NoScout, "no-scout", false, "skip scout this run")
	cmd.Flags().StringVar(&opts.ObserveMode, "observe-mode", "", "observation depth: quick or deep")
	cmd.Flags().StringVar(&opts.PersonaID, "persona", "", "force a specific persona")
	cmd.Flags().StringVar(&opts.AdversarialID, "adversarial", "", "force a specific adversarial challenge ('none' to disable)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "restrict persona selection to one group")
	cmd.Flags().BoolVar(&opts.AllPersonas, "all-personas", false, "run one cycle per active persona")
	cmd.Flags().BoolVar(&opts.Cautious, "cautious", false, "pause after planning for human review")
	cmd.Flags().StringVar(&resumeToken, "resume", "", "resume a paused cautious cycle with its token")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "cancel a paused cautious cycle")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var project, level string
	var opts orchestrator.Options
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Observe-only sweep that writes proposals without changing code",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openProject(project, level)
			if err != nil {
				return err
			}
			engine := orchestrator.New(st, cfg, runner.New(), gitops.New(st.Project))
			msg, err := engine.RunAnalyze(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	cmd.Flags().StringVar(&level, "level", "", "intensity preset override: quick, standard or deep")
	cmd.Flags().StringVar(&opts.PersonaID, "persona", "", "analyze with a single persona")
	cmd.Flags().StringVar(&opts.Group, "group", "", "restrict the sweep to one persona group")
	cmd.Flags().StringVar(&opts.ObserveMode, "observe-mode", "", "observation depth: quick or deep")
	return cmd
}

func newImproveCmd() *cobra.Command {
	var project, level, proposal string
	cmd := &cobra.Command{
		Use:   "improve",
		Short: "Implement a pending proposal end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openProject(project, level)
			if err != nil {
				return err
			}
			msg, err := improve.Run(cmd.Context(), st, cfg, runner.New(), gitops.New(st.Project), proposal)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	cmd.Flags().StringVar(&level, "level", "", "intensity preset override: quick, standard or deep")
	cmd.Flags().StringVar(&proposal, "proposal", "", "proposal filename (default: highest priority pending)")
	return cmd
}

func newScoutCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Run one external research pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openProject(project, "")
			if err != nil {
				return err
			}
			lk, err := lock.Acquire(st.LockPath())
			if err != nil {
				return err
			}
			defer lk.Release()

			p, err := st.ReadProgress()
			if err != nil {
				return err
			}
			sum, err := scout.Run(cmd.Context(), st, cfg, runner.New(), p.TotalCycles)
			if err != nil {
				return err
			}
			p.LastScoutCycle = p.TotalCycles
			if err := st.WriteProgress(p); err != nil {
				return err
			}
			fmt.Printf("Scout pass complete: %d finding(s), %d injected as stimuli.\n",
				sum.Found, sum.Injected)
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	return cmd
}
