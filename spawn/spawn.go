// Package spawn starts child processes on behalf of code that sees the
// filesystem through an asar overlay.
//
// A child process does not share the overlay, so a path inside an archive
// means nothing to it. [Launcher.Command] passes arguments through
// literally. [Launcher.Fork] runs a script with a host runtime and, when
// the script lives inside an archive, reads it through the overlay and
// hands it to the runtime on stdin.
package spawn

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/meigma/asar"
)

// Runtime describes the interpreter used by Fork.
type Runtime struct {
	// Path is the interpreter binary, looked up in PATH if it has no slash.
	Path string

	// Args are passed before the script.
	Args []string

	// StdinArgs make the interpreter read its program from stdin. They
	// replace the script path when the script is inside an archive,
	// for example ["-"] for node or ["-s"] for sh.
	StdinArgs []string
}

// Shell runs scripts with /bin/sh.
var Shell = Runtime{Path: "/bin/sh", StdinArgs: []string{"-s"}}

// Launcher builds commands for child processes.
type Launcher struct {
	fsys    *asar.FS
	runtime Runtime
	logger  *slog.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithRuntime sets the interpreter used by Fork. Defaults to Shell.
func WithRuntime(rt Runtime) Option {
	return func(l *Launcher) {
		l.runtime = rt
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// New returns a Launcher that reads archived scripts through fsys.
func New(fsys *asar.FS, opts ...Option) *Launcher {
	l := &Launcher{fsys: fsys, runtime: Shell}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Launcher) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Command returns an *exec.Cmd for name with args, without running it.
// Arguments are never rewritten, including paths inside archives.
func (l *Launcher) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// Fork returns a command that runs script with the launcher's runtime,
// followed by args.
//
// A script inside an archive is read through the overlay, checked for
// errors up front, and attached as the command's stdin; the runtime gets
// its StdinArgs in place of the path. Any other script path is passed to
// the runtime as is. The caller must not replace Stdin of an archived
// script's command.
func (l *Launcher) Fork(ctx context.Context, script string, args ...string) (*exec.Cmd, error) {
	rt := l.runtime
	if rt.Path == "" {
		return nil, fmt.Errorf("fork %s: runtime path not set", script)
	}
	argv := append([]string{}, rt.Args...)

	if !l.fsys.IsArchive(script) {
		argv = append(argv, script)
		argv = append(argv, args...)
		return exec.CommandContext(ctx, rt.Path, argv...), nil
	}

	if len(rt.StdinArgs) == 0 {
		return nil, fmt.Errorf("fork %s: runtime %s cannot read a script from stdin", script, rt.Path)
	}
	src, err := l.fsys.ReadFile(script)
	if err != nil {
		return nil, fmt.Errorf("fork: %w", err)
	}
	argv = append(argv, rt.StdinArgs...)
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, rt.Path, argv...)
	cmd.Stdin = bytes.NewReader(src)
	l.log().Debug("fork archived script",
		"script", script,
		"runtime", rt.Path,
		"bytes", len(src))
	return cmd, nil
}
