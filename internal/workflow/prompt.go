package workflow

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
)

type Action int

const (
	ActionPublish Action = iota
	ActionCancel
)

type Prompter interface {
	GetConfirmation(message string, autoYes bool) (Action, string, error)
}

type InteractivePrompter struct {
	ErrWriter io.Writer
	Stdin     io.Reader
}

func (p *InteractivePrompter) GetConfirmation(message string, autoYes bool) (Action, string, error) {
	if autoYes {
		fmt.Fprintln(p.ErrWriter, "Auto-confirming commit message (--yes flag is set)")
		return ActionPublish, "", nil
	}

	stdin := p.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	if f, ok := stdin.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			return ActionCancel, "", errors.New("stdin is not a terminal, use --yes to skip interactive confirmation")
		}
	}

	fmt.Fprint(p.ErrWriter,
		"\nDo you want to publish with this commit message? [y/n/e] (y/n/e=edit): ")
	reader := bufio.NewReader(stdin)
	response, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && response != "") {
		return ActionCancel, "", fmt.Errorf("failed to read user input: %w", err)
	}

	response = strings.ToLower(strings.TrimSpace(response))
	switch response {
	case "n":
		return ActionCancel, "", nil
	case "e":
		editedMessage, err := p.openEditor(message)
		return ActionPublish, editedMessage, err
	case "y", "":
		if response == "" {
			fmt.Fprintln(p.ErrWriter, "Using default option (yes)")
		}
		return ActionPublish, "", nil
	default:
		fmt.Fprintln(p.ErrWriter, "Invalid input. Publish cancelled")
		return ActionCancel, "", nil
	}
}

func (p *InteractivePrompter) openEditor(message string) (string, error) {
	fmt.Fprintln(p.ErrWriter, "Opening editor to modify commit message...")

	tmpFile, err := os.CreateTemp("", "gpush-commit-")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	tmpFileName := tmpFile.Name()
	defer os.Remove(tmpFileName)

	if _, err := tmpFile.WriteString(message); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write to temporary file: %w", err)
	}
	tmpFile.Close()

	cmd := exec.Command(getEditor(), tmpFileName)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %w", err)
	}

	editedBytes, err := os.ReadFile(tmpFileName)
	if err != nil {
		return "", fmt.Errorf("failed to read edited message: %w", err)
	}

	editedMessage := strings.TrimSpace(string(editedBytes))
	if editedMessage != "" {
		fmt.Fprintln(p.ErrWriter, "Using edited message:")
		fmt.Fprintln(p.ErrWriter, editedMessage)
		return editedMessage, nil
	}

	fmt.Fprintln(p.ErrWriter, "Empty message provided, using original message")
	return "", nil
}

func getEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	return "vi"
}
