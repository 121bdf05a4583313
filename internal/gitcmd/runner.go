// Package gitcmd runs the local git binary.
package gitcmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner executes git commands with shared logging and output handling.
type Runner struct {
	Verbose bool
	Dir     string
	Env     []string
	Logger  io.Writer
}

// Result contains captured stdout/stderr for a git command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

func (r Result) StdoutString(trim bool) string {
	output := string(r.Stdout)
	if trim {
		return strings.TrimSpace(output)
	}
	return output
}

func (r Result) StderrString(trim bool) string {
	output := string(r.Stderr)
	if trim {
		return strings.TrimSpace(output)
	}
	return output
}

func (r Runner) withDefaults() Runner {
	if r.Logger == nil {
		r.Logger = os.Stderr
	}
	return r
}

func (r Runner) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	return cmd
}

func (r Runner) log(args []string) {
	if !r.Verbose {
		return
	}
	r = r.withDefaults()
	fmt.Fprintf(r.Logger, "Running: git %s\n", strings.Join(args, " "))
}

// Run executes a git command and captures stdout/stderr.
func (r Runner) Run(ctx context.Context, args ...string) (Result, error) {
	r.log(args)
	cmd := r.command(ctx, args...)

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	return Result{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes()}, err
}
