// Package runnertest provides a recording runner.Executor for tests.
package runnertest

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
)

// Response is what a faked command produces.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Call is a recorded invocation, with its stdin drained.
type Call struct {
	runner.Invocation
	Input string
}

// Line is the command line with the executable reduced to its base name.
func (c Call) Line() string {
	return strings.Join(append([]string{filepath.Base(c.Executable)}, c.Args...), " ")
}

type Recorder struct {
	mu    sync.Mutex
	calls []Call
	// Respond decides the outcome of each call. Nil succeeds with no output.
	Respond func(inv runner.Invocation) Response
}

func NewRecorder(respond func(inv runner.Invocation) Response) *Recorder {
	return &Recorder{Respond: respond}
}

func (r *Recorder) Run(_ context.Context, inv runner.Invocation) (int, error) {
	resp := r.record(inv)
	return resp.ExitCode, r.err(inv, resp)
}

func (r *Recorder) Capture(_ context.Context, inv runner.Invocation) ([]byte, error) {
	resp := r.record(inv)
	return []byte(resp.Stdout), r.err(inv, resp)
}

func (r *Recorder) Exec(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	resp := r.record(inv)
	result := &runner.Result{ExitCode: resp.ExitCode, Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr)}
	return result, r.err(inv, resp)
}

func (r *Recorder) record(inv runner.Invocation) Response {
	call := Call{Invocation: inv}
	if inv.Stdin != nil {
		data, _ := io.ReadAll(inv.Stdin)
		call.Input = string(data)
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	respond := r.Respond
	r.mu.Unlock()

	if respond == nil {
		return Response{}
	}
	return respond(inv)
}

func (r *Recorder) err(inv runner.Invocation, resp Response) error {
	if resp.Err != nil {
		return resp.Err
	}
	if resp.ExitCode != 0 {
		return &model.ExternalCommandError{Executable: inv.Executable, Args: inv.Args, ExitCode: resp.ExitCode}
	}
	return nil
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Call, len(r.calls))
	copy(result, r.calls)
	return result
}

// Lines lists the command line of every call, in order.
func (r *Recorder) Lines() []string {
	var lines []string
	for _, c := range r.Calls() {
		lines = append(lines, c.Line())
	}
	return lines
}

// Matching returns the calls whose line contains every fragment.
func (r *Recorder) Matching(fragments ...string) []Call {
	var result []Call
	for _, c := range r.Calls() {
		line := c.Line()
		match := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				match = false
				break
			}
		}
		if match {
			result = append(result, c)
		}
	}
	return result
}

// HasArgs tells whether args appear in order, contiguously, in the call arguments.
func (c Call) HasArgs(args ...string) bool {
	for i := 0; i+len(args) <= len(c.Args); i++ {
		match := true
		for j, a := range args {
			if c.Args[i+j] != a {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
