package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lherron/stencil/internal/cli/appctx"
	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/lockfile"
)

// errNoProject is returned when no generated project encloses the working
// directory.
var errNoProject = errors.New("not inside a generated project (no " + lockfile.FileName + " found)")

// findProjectDir walks up from start to the nearest directory holding a
// lock file.
func findProjectDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if lockfile.Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNoProject
		}
		dir = parent
	}
}

// target is one project a command operates on.
type target struct {
	Dir     string
	Project *domain.Project // nil when unregistered
}

// resolveTargets turns command arguments into project directories. An
// argument is a directory, or a registered project's UUID, path or name.
// No arguments means the project enclosing the working directory; all
// selects every registered project.
func resolveTargets(app *appctx.App, args []string, all bool) ([]target, error) {
	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all cannot be combined with project arguments")
		}
		projects, err := app.Store.Projects.List()
		if err != nil {
			return nil, err
		}
		out := make([]target, 0, len(projects))
		for i := range projects {
			out = append(out, target{Dir: projects[i].Path, Project: &projects[i]})
		}
		return out, nil
	}

	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir, err := findProjectDir(cwd)
		if err != nil {
			return nil, err
		}
		args = []string{dir}
	}

	out := make([]target, 0, len(args))
	for _, arg := range args {
		t, err := resolveTarget(app, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func resolveTarget(app *appctx.App, arg string) (target, error) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		dir, err := filepath.Abs(arg)
		if err != nil {
			return target{}, err
		}
		t := target{Dir: dir}
		if app.Store != nil {
			if p, err := app.Store.Projects.Find(dir); err == nil {
				t.Project = p
			}
		}
		return t, nil
	}
	if app.Store == nil {
		return target{}, fmt.Errorf("project directory %s does not exist", arg)
	}
	p, err := app.Store.Projects.Find(arg)
	if err != nil {
		return target{}, fmt.Errorf("unknown project %q: %w", arg, err)
	}
	return target{Dir: p.Path, Project: p}, nil
}

func targetDirs(targets []target) []string {
	dirs := make([]string, len(targets))
	for i, t := range targets {
		dirs[i] = t.Dir
	}
	return dirs
}
