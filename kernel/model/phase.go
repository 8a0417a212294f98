package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Phase is the value persisted in the status file. Exactly one phase is current at any time.
type Phase string

const (
	PhaseSetup              Phase = "SETUP"
	PhaseInit               Phase = "INIT"
	PhaseBuilding           Phase = "BUILDING"
	PhaseBuild              Phase = "BUILD"
	PhaseImporting          Phase = "IMPORTING"
	PhaseExporting          Phase = "EXPORTING"
	PhaseImported           Phase = "IMPORTED"
	PhaseExported           Phase = "EXPORTED"
	PhaseRotatingKeys       Phase = "ROTATING_KEYS"
	PhaseConfiguringClients Phase = "CONFIGURING_CLIENTS"
	PhaseCleaning           Phase = "CLEANING"
	PhaseDone               Phase = "DONE"
	PhaseError              Phase = "ERROR"
)

var knownPhases = map[Phase]struct{}{
	PhaseSetup:              {},
	PhaseInit:               {},
	PhaseBuilding:           {},
	PhaseBuild:              {},
	PhaseImporting:          {},
	PhaseExporting:          {},
	PhaseImported:           {},
	PhaseExported:           {},
	PhaseRotatingKeys:       {},
	PhaseConfiguringClients: {},
	PhaseCleaning:           {},
	PhaseDone:               {},
	PhaseError:              {},
}

// ParsePhase reads a phase as found in a status file, surrounding whitespace ignored.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.TrimSpace(s))
	if _, ok := knownPhases[p]; !ok {
		return "", errors.Errorf("unknown phase '%s'", s)
	}
	return p, nil
}

func (p Phase) String() string {
	return string(p)
}

// IsTerminal is true for DONE and ERROR.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseError
}
