package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

const maskedSecret = "********"

// Invocation is one external call. Args are passed as-is to the process, never through a
// shell.
type Invocation struct {
	Executable string
	Args       []string
	LogPath    string
	Dir        string
	Env        []string
	Stdin      io.Reader
	// Secrets are replaced in the logged command line.
	Secrets []string
}

// CommandLine renders the invocation for logs, secrets masked.
func (inv Invocation) CommandLine() string {
	line := strings.Join(append([]string{inv.Executable}, inv.Args...), " ")
	for _, s := range inv.Secrets {
		if s != "" {
			line = strings.ReplaceAll(line, s, maskedSecret)
		}
	}
	return line
}

// Result carries the captured streams of Exec. Stdout and Stderr are still mirrored to the
// log file.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Executor runs external commands. A non-zero exit is always returned as
// *model.ExternalCommandError.
type Executor interface {
	// Run streams the output to the console and the log file and returns the exit code.
	Run(ctx context.Context, inv Invocation) (int, error)
	// Capture returns stdout instead of echoing it. Stderr still reaches the console.
	Capture(ctx context.Context, inv Invocation) ([]byte, error)
	// Exec captures both streams. On a non-zero exit the Result is returned along with the
	// error so callers can inspect stderr.
	Exec(ctx context.Context, inv Invocation) (*Result, error)
}

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// GracePeriod is the delay between SIGTERM and SIGKILL once the context is cancelled.
	GracePeriod time.Duration
	logs        cmap.ConcurrentMap[string, *os.File]
}

func New(stdout, stderr io.Writer) *Runner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Runner{
		Stdout:      stdout,
		Stderr:      stderr,
		GracePeriod: 10 * time.Second,
		logs:        cmap.New[*os.File](),
	}
}

func (r *Runner) Run(ctx context.Context, inv Invocation) (int, error) {
	log, err := r.open(inv)
	if err != nil {
		return -1, err
	}
	return r.exec(ctx, inv, log, io.MultiWriter(r.Stdout, log), io.MultiWriter(r.Stderr, log))
}

func (r *Runner) Capture(ctx context.Context, inv Invocation) ([]byte, error) {
	log, err := r.open(inv)
	if err != nil {
		return nil, err
	}
	var stdout bytes.Buffer
	if _, err := r.exec(ctx, inv, log, io.MultiWriter(&stdout, log), io.MultiWriter(r.Stderr, log)); err != nil {
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func (r *Runner) Exec(ctx context.Context, inv Invocation) (*Result, error) {
	log, err := r.open(inv)
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	code, err := r.exec(ctx, inv, log, io.MultiWriter(&stdout, log), io.MultiWriter(&stderr, log))
	return &Result{ExitCode: code, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

// Close releases every cached log handle.
func (r *Runner) Close() error {
	var first error
	for item := range r.logs.IterBuffered() {
		if err := item.Val.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.logs.Clear()
	return first
}

func (r *Runner) exec(ctx context.Context, inv Invocation, log, stdout, stderr io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, errors.Wrapf(model.ErrInterrupted, "not starting '%s'", inv.Executable)
	}

	line := inv.CommandLine()
	logrus.Debugf("$ %s", line)
	if _, err := fmt.Fprintf(log, "$ %s\n", line); err != nil {
		return -1, errors.Wrapf(err, "unable to write log of '%s'", inv.Executable)
	}

	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = inv.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.GracePeriod

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, errors.Wrapf(model.ErrInterrupted, "'%s' aborted", inv.Executable)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return code, &model.ExternalCommandError{Executable: inv.Executable, Args: maskArgs(inv), ExitCode: code}
	}
	return -1, errors.Wrapf(err, "unable to run '%s'", inv.Executable)
}

// open returns the append handle of the invocation log, shared by every invocation with the
// same path.
func (r *Runner) open(inv Invocation) (io.Writer, error) {
	if inv.LogPath == "" {
		return io.Discard, nil
	}
	path := filepath.Clean(inv.LogPath)
	if f, found := r.logs.Get(path); found {
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "unable to create log dir for '%s'", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open log '%s'", path)
	}
	if !r.logs.SetIfAbsent(path, f) {
		_ = f.Close()
		f, _ = r.logs.Get(path)
	}
	return f, nil
}

func maskArgs(inv Invocation) []string {
	args := make([]string, len(inv.Args))
	for i, a := range inv.Args {
		for _, s := range inv.Secrets {
			if s != "" {
				a = strings.ReplaceAll(a, s, maskedSecret)
			}
		}
		args[i] = a
	}
	return args
}
