package cmd

import (
	"fmt"

	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	logLimit int
	logCmd   = &cobra.Command{
		Use:   "log",
		Short: "Show recent commits on the configured branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				f, err := a.flow(cmd.Context(), flowNeeds{remote: true}, workflow.Options{})
				if err != nil {
					return err
				}
				commits, err := f.Log(cmd.Context(), logLimit)
				if err != nil {
					return err
				}
				if len(commits) == 0 {
					fmt.Fprintln(outWriter(), "No commits found")
					return nil
				}
				printCommits(outWriter(), commits)
				return nil
			})
		},
	}
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 10, "Number of commits to show")
	rootCmd.AddCommand(logCmd)
}
