package store

import (
	"time"

	"github.com/youwol/datamanager/kernel/model"
)

// PhaseStore persists the current phase of a run.
type PhaseStore interface {
	// SetPhase makes phase current. Once ERROR has been written, any other phase is
	// rejected with model.ErrTerminalPhase.
	SetPhase(phase model.Phase) error
	Phase() (model.Phase, error)
}

// JournalStore extends PhaseStore with the history of transitions.
type JournalStore interface {
	PhaseStore
	Transitions() ([]Transition, error)
}

// Transition records one phase change.
type Transition struct {
	Phase model.Phase `json:"phase"`
	At    time.Time   `json:"at"`
}
