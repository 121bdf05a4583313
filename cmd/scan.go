package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index the remote branch so staged files get their remote path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(a *app) error {
			f, err := a.flow(cmd.Context(), flowNeeds{remote: true}, workflow.Options{})
			if err != nil {
				return err
			}
			idx, err := f.Scan(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(outWriter(), "Scan complete! Found %d files.\n", idx.Len())
			yellow := color.New(color.FgYellow)
			if idx.Truncated() {
				yellow.Fprintln(errWriter(), "Warning: the remote tree is too large and was truncated; some paths are missing")
			}
			for _, name := range idx.CollisionNames() {
				p, _ := idx.Lookup(name)
				yellow.Fprintf(errWriter(), "Warning: %s exists at several paths, using %s\n", name, p)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
