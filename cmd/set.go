package cmd

import (
	"errors"
	"fmt"

	"github.com/samzong/gpush/internal/committype"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	setPath    string
	setType    string
	setMessage string
	setCmd     = &cobra.Command{
		Use:   "set <ref>",
		Short: "Edit the path, commit type or message of a staged file",
		Long: `Edit the path, commit type or message of a staged file. <ref> is the position ` +
			`shown by gpush status or a unique file name. Editing a file in error makes it ` +
			`ready for the next push.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, args[0])
		},
	}
)

func init() {
	setCmd.Flags().StringVarP(&setPath, "path", "p", "", "Remote path of the file")
	setCmd.Flags().StringVarP(&setType, "type", "t", "", "Commit type (feat, fix, chore, ...)")
	setCmd.Flags().StringVarP(&setMessage, "message", "m", "", "Commit message description")
	_ = setCmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return committype.All(), cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, ref string) error {
	flags := cmd.Flags()
	if !flags.Changed("path") && !flags.Changed("type") && !flags.Changed("message") {
		return errors.New("nothing to change, use --path, --type or --message")
	}

	return withApp(func(a *app) error {
		f, err := a.flow(cmd.Context(), flowNeeds{}, workflow.Options{})
		if err != nil {
			return err
		}
		var updated staging.File
		err = f.Update(cmd.Context(), func() error {
			staged := f.Staged()
			file, err := staged.Resolve(ref)
			if err != nil {
				return err
			}

			if flags.Changed("path") {
				if err := staged.SetPath(file.ID, setPath); err != nil {
					return err
				}
			}
			if flags.Changed("type") {
				if err := staged.SetCommitType(file.ID, setType); err != nil {
					return err
				}
			}
			if flags.Changed("message") {
				if err := staged.SetCommitMessage(file.ID, setMessage); err != nil {
					return err
				}
			}
			updated, err = staged.Get(file.ID)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(outWriter(), "Updated %s: %s %s %q\n", updated.Name, updated.CommitType, updated.Path, updated.CommitMessage)
		return nil
	})
}
