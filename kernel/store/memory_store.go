package store

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/youwol/datamanager/kernel/model"
)

// MemoryStore is an in-memory implementation of JournalStore for testing.
type MemoryStore struct {
	mu          sync.RWMutex
	transitions []Transition
	// FailOn makes SetPhase fail when asked to write this phase.
	FailOn model.Phase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SetPhase(phase model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.transitions); n > 0 && s.transitions[n-1].Phase == model.PhaseError {
		if phase == model.PhaseError {
			return nil
		}
		return model.ErrTerminalPhase
	}
	if s.FailOn != "" && phase == s.FailOn {
		return errors.Errorf("unable to write status '%s'", phase)
	}
	s.transitions = append(s.transitions, Transition{Phase: phase, At: time.Now().UTC()})
	return nil
}

func (s *MemoryStore) Phase() (model.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.transitions) == 0 {
		return "", errors.New("no status written")
	}
	return s.transitions[len(s.transitions)-1].Phase, nil
}

func (s *MemoryStore) Transitions() ([]Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Transition, len(s.transitions))
	copy(result, s.transitions)
	return result, nil
}

// Phases lists the written phases in order.
func (s *MemoryStore) Phases() []model.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Phase, 0, len(s.transitions))
	for _, t := range s.transitions {
		result = append(result, t.Phase)
	}
	return result
}
