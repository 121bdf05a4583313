package cmd

import (
	"fmt"

	"github.com/samzong/gpush/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage gpush configuration",
		Long:  `Manage gpush configuration: target repository and branch, LLM model and endpoint, limits.`,
	}

	configSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.Keys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(_ *cobra.Command, args []string) error {
			if configErr != nil {
				return fmt.Errorf("configuration error: %w", configErr)
			}
			if err := config.Set(args[0], args[1]); err != nil {
				return fmt.Errorf("failed to set %s: %w", args[0], err)
			}
			value, _ := config.Get(args[0])
			fmt.Fprintf(outWriter(), "%s = %s\n", args[0], value)
			return nil
		},
	}

	configGetCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Show configuration values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if configErr != nil {
				return fmt.Errorf("configuration error: %w", configErr)
			}
			if len(args) == 1 {
				value, err := config.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(outWriter(), value)
				return nil
			}

			fmt.Fprintf(outWriter(), "Configuration file: %s\n", viper.ConfigFileUsed())
			for _, key := range config.Keys() {
				value, _ := config.Get(key)
				if value == "" {
					value = "<not set>"
				}
				fmt.Fprintf(outWriter(), "%s: %s\n", key, value)
			}
			return nil
		},
	}
)

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
