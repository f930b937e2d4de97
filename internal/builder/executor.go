package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/recipe"
)

// StepContext is everything a step executor may see of a build.
type StepContext struct {
	Recipe *recipe.Recipe
	Key    string

	// WorkDir is the private working directory; steps run in it.
	WorkDir string

	// Src is the prepared source tree, empty when the recipe has none.
	Src string

	// Out is the existing empty directory the steps must fill.
	Out string

	// Deps maps dependency names to their artifact paths.
	Deps map[string]string
}

// Env returns the build environment: out, src, one dep_<name> per dependency
// and a fixed PATH. Nothing is inherited from the calling process.
// Characters not valid in shell identifiers are replaced by '_' in dep names.
func (sc StepContext) Env() []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + sc.WorkDir,
		"TMPDIR=" + sc.WorkDir,
		"out=" + sc.Out,
		"src=" + sc.Src,
	}
	names := make([]string, 0, len(sc.Deps))
	for n := range sc.Deps {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		env = append(env, "dep_"+envName(n)+"="+sc.Deps[n])
	}
	return env
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

// StepExecutor runs a recipe's steps.
type StepExecutor interface {
	Run(ctx context.Context, sc StepContext) error
}

// ShellExecutor runs each step with "sh -c" in the working directory.
type ShellExecutor struct {
	// Shell overrides the interpreter, default "sh".
	Shell string
}

// Run executes the steps in order and stops at the first failure.
func (e ShellExecutor) Run(ctx context.Context, sc StepContext) error {
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	log := output.RecipeLogger(sc.Recipe.Name)
	env := sc.Env()

	for i, step := range sc.Recipe.Steps {
		log.Debug("running step", "index", i, "step", step)

		var buf bytes.Buffer
		cmd := exec.CommandContext(ctx, shell, "-c", step)
		cmd.Dir = sc.WorkDir
		cmd.Env = env
		cmd.Stdout = &buf
		cmd.Stderr = &buf

		err := cmd.Run()
		if buf.Len() > 0 {
			log.Debug("step output", "index", i, "output", strings.TrimRight(buf.String(), "\n"))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &oerrors.RecipeError{
				Kind:   oerrors.ErrBuildStepFailure,
				Recipe: sc.Recipe.Name,
				Key:    sc.Key,
				Detail: fmt.Sprintf("step %d %q: %s", i+1, step, tail(buf.String(), 20)),
				Cause:  err,
			}
		}
	}
	return nil
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// copyTree copies src into dest, keeping symlinks and file modes.
func copyTree(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyEntry(src, dest, info)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyEntry(path, filepath.Join(dest, rel), info)
	})
}

func copyEntry(path, target string, info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(path)
		if err != nil {
			return err
		}
		return os.Symlink(link, target)
	case info.IsDir():
		return os.MkdirAll(target, info.Mode().Perm()|0o700)
	case info.Mode().IsRegular():
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	default:
		return fmt.Errorf("%s: unsupported file type %s", path, info.Mode().Type())
	}
}
