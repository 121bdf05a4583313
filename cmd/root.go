package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/samzong/gpush/internal/config"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	configErr error
	cmdCtx    = context.Background()
	rootCmd   = &cobra.Command{
		Use:   "gpush",
		Short: "gpush - publish local files to GitHub as one commit",
		Long: `gpush stages local files, suggests Conventional Commits messages with an LLM ` +
			`and publishes the whole batch to a GitHub branch as a single atomic commit.`,
		Version:       fmt.Sprintf("%s (built at %s)", Version, BuildTime),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

// SetContext sets the context used by every command.
func SetContext(ctx context.Context) {
	cmdCtx = ctx
}

func Execute() error {
	return rootCmd.ExecuteContext(cmdCtx)
}

// RootCmd returns the root command, used by the man page generator.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Configuration file path (default is $XDG_CONFIG_HOME/gpush/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Show request and git command tracing")
}

func initConfig() {
	configErr = config.InitConfig(cfgFile)
}

// handleErrors turns expected outcomes into hints and passes real failures on.
func handleErrors(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrCancelled):
		fmt.Fprintln(errWriter(), "Publish cancelled by user")
		return nil
	case errors.Is(err, staging.ErrNothingToPublish):
		return fmt.Errorf("%w\nHint: set a path and message with gpush set <ref> --path P --message M, or run gpush suggest <ref>", err)
	}
	return err
}
