package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	OutLogName = "script_out.log"
	ErrLogName = "script_err.log"
)

type Options struct {
	// Dir receives script_out.log and script_err.log. Empty logs to the console only.
	Dir     string
	Verbose bool
}

// Sink owns the console mirrors. Stdout and Stderr tee to the console and the script logs.
type Sink struct {
	Stdout io.Writer
	Stderr io.Writer
	files  []*os.File
}

// Init configures the global logrus logger through pfxlog and returns the sink the command
// runner writes external output to.
func Init(opts Options) (*Sink, error) {
	level := logrus.InfoLevel
	if opts.Verbose {
		level = logrus.DebugLevel
	}

	options := pfxlog.DefaultOptions().SetTrimPrefix("github.com/youwol/")
	if opts.Dir != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		options = options.NoColor()
	}
	pfxlog.GlobalInit(level, options)
	logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	sink := &Sink{Stdout: os.Stdout, Stderr: os.Stderr}
	if opts.Dir == "" {
		logrus.SetOutput(os.Stderr)
		return sink, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "unable to create log dir '%s'", opts.Dir)
	}
	out, err := openAppend(filepath.Join(opts.Dir, OutLogName))
	if err != nil {
		return nil, err
	}
	errFile, err := openAppend(filepath.Join(opts.Dir, ErrLogName))
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	sink.files = []*os.File{out, errFile}
	sink.Stdout = io.MultiWriter(os.Stdout, out)
	sink.Stderr = io.MultiWriter(os.Stderr, out, errFile)

	logrus.SetOutput(io.MultiWriter(os.Stderr, out))
	logrus.AddHook(NewErrorFileHook(errFile))
	return sink, nil
}

func (s *Sink) Close() error {
	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.files = nil
	return first
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open log file '%s'", path)
	}
	return f, nil
}

// ErrorFileHook copies warnings and errors to a dedicated writer.
type ErrorFileHook struct {
	mu sync.Mutex
	w  io.Writer
}

func NewErrorFileHook(w io.Writer) *ErrorFileHook {
	return &ErrorFileHook{w: w}
}

func (h *ErrorFileHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *ErrorFileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

// TaskLogger returns the logger carrying the workflow and task fields.
func TaskLogger(workflow, task string) *logrus.Entry {
	return pfxlog.ContextLogger(workflow).WithField("workflow", workflow).WithField("task", task)
}
