package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/evonest/internal/history"
	"github.com/HendryAvila/evonest/internal/improve"
	"github.com/HendryAvila/evonest/internal/progress"
)

func newStatusCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the knowledge base overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openProject(project, "")
			if err != nil {
				return err
			}
			summary, err := st.Summary()
			if err != nil {
				return err
			}
			fmt.Println(summary)
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	return cmd
}

func newProgressCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show accumulated evolution statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openProject(project, "")
			if err != nil {
				return err
			}
			p, err := st.ReadProgress()
			if err != nil {
				return err
			}
			fmt.Println(progress.Report(p))
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var project string
	var count int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent evolution cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openProject(project, "")
			if err != nil {
				return err
			}
			report, err := history.Report(st, count)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of cycles to show")
	return cmd
}

func newProposalsCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List pending proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openProject(project, "")
			if err != nil {
				return err
			}
			props, err := improve.List(st)
			if err != nil {
				return err
			}
			if len(props) == 0 {
				fmt.Println("No pending proposals.")
				return nil
			}
			fmt.Printf("Pending proposals (%d):\n", len(props))
			for _, p := range props {
				fmt.Printf("  [%s] %s  (%s)\n", p.Priority, p.Title, filepath.Base(p.Path))
			}
			fmt.Println("\nImplement one with: evonest improve --proposal <filename>")
			return nil
		},
	}
	addProjectFlag(cmd, &project)
	return cmd
}
