package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samzong/gpush/internal/config"
	"github.com/samzong/gpush/internal/credential"
	"github.com/samzong/gpush/internal/llm"
	"github.com/spf13/cobra"
)

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize gpush configuration and credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				if err := runInitWizard(cmd.Context(), os.Stdin, outWriter(), a); err != nil {
					return err
				}
				fmt.Fprintln(outWriter(), "Initialization complete.")
				return nil
			})
		},
	}

	// saveConfigValues validates and writes the wizard answers in one save.
	saveConfigValues = func(values map[string]string) error {
		for _, key := range []string{"repo", "branch", "model"} {
			raw, ok := values[key]
			if !ok {
				continue
			}
			v, err := config.Normalize(key, raw)
			if err != nil {
				return err
			}
			config.SetConfigValue(key, v)
		}
		return config.SaveConfig()
	}

	testLLMConnection = func(ctx context.Context, opts llm.Options) error {
		return llm.NewClient(opts).TestConnection(ctx)
	}
)

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInitWizard(ctx context.Context, in io.Reader, out io.Writer, a *app) error {
	cfg := a.cfg
	readLine := newTrimmedLineReader(in)
	fmt.Fprintln(out, "gpush init - configure the target repository and credentials")

	repoDefault := cfg.Repo
	if repoDefault == "" {
		if detected, err := detectRepo(ctx); err == nil {
			repoDefault = detected.String()
		}
	}
	repo, err := promptValue(out, readLine, "Repository (owner/name)", repoDefault, true)
	if err != nil {
		return err
	}
	branchDefault := cfg.Branch
	if cfg.Repo == "" && repoDefault != "" {
		if current, err := detectBranch(ctx); err == nil && current != "" {
			branchDefault = current
		}
	}
	branch, err := promptValue(out, readLine, "Branch", branchDefault, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Suggested models: %s\n", strings.Join(config.GetSuggestedModels(), ", "))
	model, err := promptValue(out, readLine, "Model", cfg.Model, true)
	if err != nil {
		return err
	}

	values := map[string]string{"repo": repo, "branch": branch, "model": model}
	if err := saveConfigValues(values); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	cfg.Repo, cfg.Branch, cfg.Model = repo, branch, model

	persist, err := promptYesNo(out, readLine, "Store credentials locally? [y/N]: ", false)
	if err != nil {
		return err
	}
	if err := a.creds.SetPersist(persist); err != nil {
		return err
	}

	if err := promptCredential(in, out, readLine, "GitHub token", a.creds.Token(), a.creds.SetToken); err != nil {
		return err
	}
	if err := promptCredential(in, out, readLine, "LLM API key", a.creds.AssistantKey(), a.creds.SetAssistantKey); err != nil {
		return err
	}
	if !persist {
		fmt.Fprintf(out, "Credentials were not stored. Export %s and %s to use them later.\n",
			credential.TokenEnv[0], credential.AssistantKeyEnv[0])
	}

	if a.creds.AssistantKey() == "" {
		return nil
	}
	return maybeTestConnection(ctx, out, a.llmOptions(), readLine)
}

func newTrimmedLineReader(in io.Reader) func() (string, error) {
	reader := bufio.NewReader(in)
	return func() (string, error) {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if errors.Is(err, io.EOF) && line == "" {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

func promptValue(out io.Writer, readLine func() (string, error), label, current string, required bool) (string, error) {
	for {
		if current != "" {
			fmt.Fprintf(out, "%s (default: %s): ", label, current)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}

		line, err := readLine()
		if err != nil {
			return "", err
		}
		if line == "" {
			line = current
		}
		if line == "" && required {
			fmt.Fprintf(out, "%s is required.\n", label)
			continue
		}
		return line, nil
	}
}

// promptCredential asks for a secret; a blank answer keeps current.
func promptCredential(
	in io.Reader, out io.Writer, readLine func() (string, error), label, current string,
	set func(string) error,
) error {
	if current != "" {
		fmt.Fprintf(out, "%s (current: %s, leave blank to keep): ", label, credential.Mask(current))
	} else {
		fmt.Fprintf(out, "%s (leave blank to skip): ", label)
	}
	value, err := readSecret(in, out, readLine)
	if err != nil {
		return err
	}
	if value == "" {
		value = current
	}
	return set(value)
}

func promptYesNo(out io.Writer, readLine func() (string, error), question string, def bool) (bool, error) {
	for {
		fmt.Fprint(out, question)
		answer, err := readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please enter y or n.")
		}
	}
}

func maybeTestConnection(ctx context.Context, out io.Writer, opts llm.Options, readLine func() (string, error)) error {
	ok, err := promptYesNo(out, readLine, "Test API connection now? [Y/n]: ", true)
	if err != nil || !ok {
		return err
	}
	fmt.Fprintln(out, "Testing API connection...")
	if err := testLLMConnection(ctx, opts); err != nil {
		fmt.Fprintf(out, "Connection test failed: %v\n", err)
		fmt.Fprintln(out, "You can re-run `gpush init` or update config with `gpush config set`.")
		return nil
	}
	fmt.Fprintln(out, "Connection test succeeded.")
	return nil
}
