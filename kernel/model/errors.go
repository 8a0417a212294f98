package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInterrupted is returned when the run was aborted by a termination signal.
	ErrInterrupted = errors.New("interrupted by signal")

	// ErrTerminalPhase is returned when a transition out of ERROR is attempted.
	ErrTerminalPhase = errors.New("status is ERROR, no further transition allowed")
)

// ExternalCommandError reports a spawned tool that exited with a non-zero code.
type ExternalCommandError struct {
	Executable string
	Args       []string
	ExitCode   int
}

func (e *ExternalCommandError) Error() string {
	return fmt.Sprintf("'%s %s' exited with code %d", e.Executable, strings.Join(e.Args, " "), e.ExitCode)
}

// ConfigurationError reports a missing or invalid setting, or a lookup that found nothing
// (realm or client not found). It is never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Setting, e.Reason)
}

func NewConfigurationError(setting, format string, args ...interface{}) error {
	return &ConfigurationError{Setting: setting, Reason: fmt.Sprintf(format, args...)}
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsExternalCommandError(err error) bool {
	var target *ExternalCommandError
	return errors.As(err, &target)
}

// ExitCode maps the outcome of a run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
