// Package prompt collects answers from a human at a terminal, or from
// values supplied on the command line.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/reconcile"
	"github.com/lherron/stencil/internal/render"
)

// ErrNotInteractive is returned when input is required but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("input required but stdin is not a terminal")

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Terminal asks questions on a line-oriented terminal.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	color bool
}

// NewTerminal returns a terminal prompter reading from in and writing to
// out.
func NewTerminal(in io.Reader, out io.Writer, color bool) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, color: color}
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no answer: %w", io.ErrUnexpectedEOF)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask prompts for one manifest prompt until a valid answer is given.
func (t *Terminal) Ask(ctx context.Context, p manifest.Prompt) (any, error) {
	message := p.Message
	if message == "" {
		message = p.Name
	}

	for {
		switch p.Kind {
		case manifest.KindChoice:
			fmt.Fprintln(t.out, message)
			def := p.DefaultValue()
			for i, c := range p.Choices {
				marker := " "
				if c == def {
					marker = "*"
				}
				fmt.Fprintf(t.out, " %s %d) %s\n", marker, i+1, c)
			}
			fmt.Fprintf(t.out, "Choose [%v]: ", def)
		case manifest.KindBoolean:
			hint := "y/N"
			if b, _ := p.DefaultValue().(bool); b {
				hint = "Y/n"
			}
			fmt.Fprintf(t.out, "%s [%s]: ", message, hint)
		default:
			if def := manifest.Format(p.DefaultValue()); def != "" {
				fmt.Fprintf(t.out, "%s [%s]: ", message, def)
			} else {
				fmt.Fprintf(t.out, "%s: ", message)
			}
		}

		line, err := t.readLine(ctx)
		if err != nil {
			return nil, err
		}
		v, err := p.ParseAnswer(line)
		if err == nil {
			return v, nil
		}
		fmt.Fprintln(t.out, err)
	}
}

// Confirm asks a yes/no question.
func (t *Terminal) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	v, err := t.Ask(ctx, manifest.Prompt{Name: "confirm", Message: message, Kind: manifest.KindBoolean, Default: def})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// ConfirmOrphans lists files the template dropped and asks whether to
// delete them.
func (t *Terminal) ConfirmOrphans(ctx context.Context, dir string, orphans []string) (bool, error) {
	fmt.Fprintf(t.out, "%s\n", render.Heading(fmt.Sprintf("%s: the template no longer provides:", dir), t.color))
	for _, o := range orphans {
		fmt.Fprintf(t.out, "  %s\n", o)
	}
	return t.Confirm(ctx, "Delete these files?", false)
}

// ResolveConflict asks whether to keep or replace a locally modified file.
// "d" shows the diff and asks again.
func (t *Terminal) ResolveConflict(ctx context.Context, c reconcile.Conflict) (reconcile.Resolution, error) {
	for {
		fmt.Fprintf(t.out, "%s %s has local changes. [s]kip, [r]eplace, [d]iff? [s]: ",
			render.Status("conflict", t.color), c.Path)
		line, err := t.readLine(ctx)
		if err != nil {
			return reconcile.Skip, err
		}
		switch strings.ToLower(line) {
		case "", "s", "skip":
			return reconcile.Skip, nil
		case "r", "replace":
			return reconcile.Replace, nil
		case "d", "diff":
			diff, err := render.UnifiedDiff(c.Path, c.Local, c.Template)
			if err != nil {
				return reconcile.Skip, err
			}
			fmt.Fprint(t.out, render.ColorDiff(diff, t.color))
		default:
			fmt.Fprintf(t.out, "unrecognized answer %q\n", line)
		}
	}
}
