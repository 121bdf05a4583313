package cmd

import (
	"fmt"

	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	rmCmd = &cobra.Command{
		Use:     "rm <ref>...",
		Aliases: []string{"remove"},
		Short:   "Remove staged files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				f, err := a.flow(cmd.Context(), flowNeeds{}, workflow.Options{})
				if err != nil {
					return err
				}
				return f.Update(cmd.Context(), func() error {
					// Resolve every ref first so positions refer to the listing
					// the user saw.
					targets := make([]staging.File, 0, len(args))
					for _, ref := range args {
						file, err := f.Staged().Resolve(ref)
						if err != nil {
							return err
						}
						targets = append(targets, file)
					}
					for _, file := range targets {
						if err := f.Staged().Remove(file.ID); err != nil {
							return err
						}
						fmt.Fprintf(outWriter(), "Removed %s\n", file.Name)
					}
					return nil
				})
			})
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every staged file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				f, err := a.flow(cmd.Context(), flowNeeds{}, workflow.Options{})
				if err != nil {
					return err
				}
				var n int
				err = f.Update(cmd.Context(), func() error {
					n = f.Staged().Len()
					f.Staged().Clear()
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(outWriter(), "Cleared %d staged file(s)\n", n)
				return nil
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(clearCmd)
}
