package model

import (
	"testing"
)

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("ROTATING_KEYS\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != PhaseRotatingKeys {
		t.Errorf("expected ROTATING_KEYS, got '%s'", p)
	}

	if _, err := ParsePhase("FINISHED"); err == nil {
		t.Error("expected error for unknown phase")
	}
	if _, err := ParsePhase(""); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseDone, PhaseError} {
		if !p.IsTerminal() {
			t.Errorf("expected %s to be terminal", p)
		}
	}
	for _, p := range []Phase{PhaseSetup, PhaseInit, PhaseImported, PhaseConfiguringClients} {
		if p.IsTerminal() {
			t.Errorf("expected %s not to be terminal", p)
		}
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("expected 0 for nil error")
	}
	err := &ExternalCommandError{Executable: "kc.sh", Args: []string{"build"}, ExitCode: 3}
	if ExitCode(err) != 1 {
		t.Error("expected 1 for external command failure")
	}
	if err.Error() != "'kc.sh build' exited with code 3" {
		t.Errorf("unexpected message '%s'", err.Error())
	}
	if !IsExternalCommandError(err) {
		t.Error("expected external command error")
	}
	if IsConfigurationError(err) {
		t.Error("did not expect configuration error")
	}
}
