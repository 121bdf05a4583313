package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/samzong/gpush/internal/credential"
	"github.com/spf13/cobra"
)

type userLookup interface {
	CurrentUser(ctx context.Context) (string, error)
}

var (
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Manage the GitHub token and the LLM API key",
		Long: `Manage the GitHub token and the LLM API key. Credentials are written to local ` +
			`storage only after "gpush auth persist on"; otherwise they can be supplied through ` +
			`GPUSH_GITHUB_TOKEN / GITHUB_TOKEN and GPUSH_ASSISTANT_KEY / OPENAI_API_KEY.`,
	}

	authTokenCmd = &cobra.Command{
		Use:   "token [TOKEN]",
		Short: "Set the GitHub token (prompted when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				return runSetCredential(os.Stdin, outWriter(), a.creds, "GitHub token", args, a.creds.SetToken)
			})
		},
	}

	authAssistantKeyCmd = &cobra.Command{
		Use:   "assistant-key [KEY]",
		Short: "Set the LLM API key (prompted when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				return runSetCredential(os.Stdin, outWriter(), a.creds, "LLM API key", args, a.creds.SetAssistantKey)
			})
		},
	}

	authPersistCmd = &cobra.Command{
		Use:       "persist on|off",
		Short:     "Store credentials locally, or remove every stored credential",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				on := args[0] == "on"
				if err := a.creds.SetPersist(on); err != nil {
					return err
				}
				if on {
					fmt.Fprintln(outWriter(), "Credentials will be stored locally")
				} else {
					fmt.Fprintln(outWriter(), "Stored credentials removed")
				}
				return nil
			})
		},
	}

	authClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Forget the GitHub token and the LLM API key",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				if err := a.creds.SetToken(""); err != nil {
					return err
				}
				if err := a.creds.SetAssistantKey(""); err != nil {
					return err
				}
				fmt.Fprintln(outWriter(), "Credentials cleared")
				return nil
			})
		},
	}

	authStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show where credentials come from",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				printAuthStatus(outWriter(), a.creds)
				return nil
			})
		},
	}

	authWhoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the GitHub login that owns the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				remote, err := a.remote()
				if err != nil {
					return err
				}
				users, ok := remote.(userLookup)
				if !ok {
					return errors.New("GitHub client cannot look up users")
				}
				login, err := users.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(outWriter(), login)
				return nil
			})
		},
	}
)

func init() {
	authCmd.AddCommand(authTokenCmd)
	authCmd.AddCommand(authAssistantKeyCmd)
	authCmd.AddCommand(authPersistCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authWhoamiCmd)
	rootCmd.AddCommand(authCmd)
}

func runSetCredential(
	in io.Reader, out io.Writer, creds *credential.Store, label string, args []string,
	set func(string) error,
) error {
	value := ""
	if len(args) == 1 {
		value = args[0]
	} else {
		fmt.Fprintf(out, "%s: ", label)
		v, err := readSecret(in, out, newTrimmedLineReader(in))
		if err != nil {
			return err
		}
		value = v
	}
	if value == "" {
		return fmt.Errorf("%s must not be empty", label)
	}

	if err := set(value); err != nil {
		return err
	}
	if creds.Persist() {
		fmt.Fprintf(out, "%s stored\n", label)
		return nil
	}
	color.New(color.FgYellow).Fprintf(out,
		"%s kept for this invocation only. Run gpush auth persist on to store it, or use an environment variable.\n", label)
	return nil
}

func printAuthStatus(w io.Writer, creds *credential.Store) {
	persist := "off"
	if creds.Persist() {
		persist = "on"
	}
	fmt.Fprintf(w, "persist: %s\n", persist)
	fmt.Fprintf(w, "github token: %s %s\n", creds.TokenSource(), credential.Mask(creds.Token()))
	fmt.Fprintf(w, "llm api key: %s %s\n", creds.AssistantKeySource(), credential.Mask(creds.AssistantKey()))
}
