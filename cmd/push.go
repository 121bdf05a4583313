package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/publish"
	"github.com/samzong/gpush/internal/stringsutil"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

const recentCommitsAfterPush = 5

var (
	pushDryRun  bool
	pushAutoYes bool
	pushCmd     = &cobra.Command{
		Use:   "push",
		Short: "Publish every ready staged file as one commit",
		Long: `Publish every ready staged file to the configured branch as one commit. ` +
			`Files without a path or message are skipped and stay staged. The branch is ` +
			`only updated if every step succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handleErrors(runPush(cmd))
		},
	}
)

func init() {
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "Show the commit message only, do not publish")
	pushCmd.Flags().BoolVarP(&pushAutoYes, "yes", "y", false, "Automatically confirm the commit message")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command) error {
	return withApp(func(a *app) error {
		opts := workflow.Options{DryRun: pushDryRun, AutoYes: pushAutoYes}
		f, err := a.flow(cmd.Context(), flowNeeds{remote: !pushDryRun}, opts)
		if err != nil {
			return err
		}

		res, err := f.Push(cmd.Context())
		if err != nil {
			var cErr *publish.CommitError
			if errors.As(err, &cErr) {
				if !cErr.OutcomeKnown() {
					return fmt.Errorf("%w\nThe branch may have been updated. Check gpush log before retrying", err)
				}
				return fmt.Errorf("%w\nThe branch was not changed. Edit or re-run gpush push to retry", err)
			}
			return err
		}
		if res.DryRun {
			return nil
		}

		green := color.New(color.FgGreen)
		green.Fprintf(errWriter(), "Successfully published %d file(s) as %s\n",
			res.Commit.Files, stringsutil.ShortSHA(res.Commit.CommitSHA, "unknown"))

		commits, err := f.Log(cmd.Context(), recentCommitsAfterPush)
		if err != nil {
			// The push succeeded; history is informational.
			fmt.Fprintf(errWriter(), "Could not load recent commits: %v\n", err)
			return nil
		}
		printCommits(errWriter(), commits)
		return nil
	})
}

func printCommits(w io.Writer, commits []github.CommitSummary) {
	yellow := color.New(color.FgYellow)
	for _, c := range commits {
		date := ""
		if !c.Date.IsZero() {
			date = c.Date.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n",
			yellow.Sprint(stringsutil.ShortSHA(c.SHA, "")), date, c.Author, stringsutil.FirstLine(c.Message))
	}
}
