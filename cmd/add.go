package cmd

import (
	"fmt"

	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Stage local files for the next push",
	Long: `Stage local files for the next push. When the repository has been scanned, ` +
		`the remote path of a file with the same name is prefilled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			f, err := a.flow(cmd.Context(), flowNeeds{}, workflow.Options{})
			if err != nil {
				return err
			}
			var addErr error
			err = f.Update(cmd.Context(), func() error {
				var added []staging.File
				added, addErr = f.Add(args)
				for _, file := range added {
					path := file.Path
					if path == "" {
						path = "<no remote path>"
					}
					fmt.Fprintf(outWriter(), "Staged %s -> %s\n", file.Name, path)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return addErr
		})
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
