// Package runner executes a template's post-create commands inside a new
// project.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/lherron/stencil/internal/expand"
	"github.com/lherron/stencil/internal/manifest"
)

// CmdResult holds the result of a command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunOpts holds optional parameters for command execution.
type RunOpts struct {
	Dir string            // working directory
	Env map[string]string // overlay on the current environment
	// Stream, when set, receives output as it is produced in addition to
	// the captured copy.
	Stream io.Writer
}

// CommandRunner runs shell command lines. A non-zero exit is reported in
// CmdResult, not as an error.
type CommandRunner interface {
	Run(ctx context.Context, line string, opts RunOpts) (CmdResult, error)
}

// Shell runs command lines with sh -c.
type Shell struct{}

func (Shell) Run(ctx context.Context, line string, opts RunOpts) (CmdResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = opts.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if opts.Stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, opts.Stream)
		cmd.Stderr = io.MultiWriter(&stderr, opts.Stream)
	}

	if len(opts.Env) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range opts.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	err := cmd.Run()
	result := CmdResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}

// Outcome is the result of one post-create command.
type Outcome struct {
	Name     string `json:"name"`
	Run      string `json:"run"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the command did not complete successfully.
func (o Outcome) Failed() bool {
	return o.Error != "" || o.ExitCode != 0
}

// Env returns the environment exposed to commands: every string-formattable
// context value as STENCIL_<KEY>.
func Env(values manifest.Context) map[string]string {
	env := make(map[string]string, len(values))
	for _, k := range values.Keys() {
		env["STENCIL_"+envKey(k)] = manifest.Format(values[k])
	}
	return env
}

func envKey(k string) string {
	var b strings.Builder
	for i, r := range k {
		switch {
		case r >= 'A' && r <= 'Z' && i > 0:
			b.WriteByte('_')
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RunAll runs cmds in order inside dir, with placeholders in each command
// line expanded from values. It keeps going after a failure; the caller
// decides what a failure means.
func RunAll(ctx context.Context, r CommandRunner, dir string, cmds []manifest.Command, values manifest.Context, stream io.Writer, logger *slog.Logger) []Outcome {
	env := Env(values)
	outcomes := make([]Outcome, 0, len(cmds))
	for _, c := range cmds {
		line := expand.String(c.Run, values)
		name := c.Name
		if name == "" {
			name = line
		}
		o := Outcome{Name: name, Run: line}

		if err := ctx.Err(); err != nil {
			o.Error = err.Error()
			outcomes = append(outcomes, o)
			continue
		}

		logger.Info("running command", "name", name, "dir", dir)
		res, err := r.Run(ctx, line, RunOpts{Dir: dir, Env: env, Stream: stream})
		o.ExitCode = res.ExitCode
		if err != nil {
			o.Error = err.Error()
		}
		if o.Failed() {
			logger.Warn("command failed", "name", name, "exit_code", o.ExitCode, "error", o.Error,
				"stderr", strings.TrimSpace(res.Stderr))
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Summary formats failed outcomes for an error message.
func Summary(outcomes []Outcome) error {
	var failed []string
	for _, o := range outcomes {
		if o.Failed() {
			failed = append(failed, fmt.Sprintf("%s (exit %d)", o.Name, o.ExitCode))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d command(s) failed: %s", len(failed), strings.Join(failed, ", "))
}
