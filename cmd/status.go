package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/ui"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List staged files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(a *app) error {
			f, err := a.flow(cmd.Context(), flowNeeds{}, workflow.Options{})
			if err != nil {
				return err
			}
			busy, err := f.Busy()
			if err != nil {
				return err
			}
			if busy != "" {
				color.New(color.FgYellow).Fprintf(errWriter(), "Another gpush process is running: %s\n", busy)
			}
			printStatus(outWriter(), f.Staged().Files())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, files []staging.File) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files staged. Use gpush add <file> to stage files.")
		return
	}

	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for i, file := range files {
		path := file.Path
		if path == "" {
			path = yellow.Sprint("<path required>")
		}
		msg := file.CommitMessage
		if msg == "" {
			msg = yellow.Sprint("<message required>")
		}
		fmt.Fprintf(w, "%3d  %-10s  %-8s  %s  %s\n", i+1, ui.StatusLabel(file.Status), file.CommitType, path, msg)
		if file.LastError != "" {
			fmt.Fprintf(w, "     %s\n", red.Sprint(file.LastError))
		}
	}
}
