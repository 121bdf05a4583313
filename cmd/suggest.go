package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <ref>...",
	Short: "Ask the LLM for a commit type and message for staged files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			f, err := a.flow(cmd.Context(), flowNeeds{remote: true, assistant: true}, workflow.Options{})
			if err != nil {
				return err
			}

			var suggestErr error
			err = f.Update(cmd.Context(), func() error {
				var results []workflow.SuggestResult
				results, suggestErr = f.Suggest(cmd.Context(), args)
				red := color.New(color.FgRed)
				for _, res := range results {
					if res.Err != nil {
						red.Fprintf(errWriter(), "%s: %v\n", res.File.Name, res.Err)
						continue
					}
					fmt.Fprintf(outWriter(), "%s: %s: %s\n", res.File.Name, res.File.CommitType, res.File.CommitMessage)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return suggestErr
		})
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}
