package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

// StatusFile keeps the phase as the single line of a file polled by external monitors, and
// a JSON journal of transitions next to it.
type StatusFile struct {
	Path string
	echo io.Writer
	mu   sync.Mutex
	err  bool
}

func NewStatusFile(path string, echo io.Writer) *StatusFile {
	if echo == nil {
		echo = io.Discard
	}
	return &StatusFile{Path: path, echo: echo}
}

func (s *StatusFile) SetPhase(phase model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err {
		if phase == model.PhaseError {
			return nil
		}
		return model.ErrTerminalPhase
	}

	if err := writeAtomic(s.Path, []byte(phase.String()+"\n")); err != nil {
		return errors.Wrapf(err, "unable to write status '%s' to '%s'", phase, s.Path)
	}
	if phase == model.PhaseError {
		s.err = true
	}
	_, _ = fmt.Fprintf(s.echo, "STATUS=%s\n", phase)

	if err := s.appendJournalUnsafe(Transition{Phase: phase, At: time.Now().UTC()}); err != nil {
		logrus.Warnf("unable to journal status '%s': %v", phase, err)
	}
	return nil
}

func (s *StatusFile) Phase() (model.Phase, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to read status file '%s'", s.Path)
	}
	return model.ParsePhase(string(data))
}

// Transitions returns the journal, oldest first. A missing journal is empty.
func (s *StatusFile) Transitions() ([]Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readJournalUnsafe()
}

func (s *StatusFile) journalPath() string {
	return s.Path + ".json"
}

func (s *StatusFile) readJournalUnsafe() ([]Transition, error) {
	data, err := os.ReadFile(s.journalPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read journal")
	}

	var transitions []Transition
	if err := json.Unmarshal(data, &transitions); err != nil {
		return nil, errors.Wrap(err, "failed to parse journal")
	}
	return transitions, nil
}

func (s *StatusFile) appendJournalUnsafe(t Transition) error {
	transitions, err := s.readJournalUnsafe()
	if err != nil {
		transitions = nil
	}
	transitions = append(transitions, t)

	data, err := json.MarshalIndent(transitions, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal")
	}
	return writeAtomic(s.journalPath(), data)
}

// writeAtomic replaces path through a temp file in the same directory, so readers see
// either the old or the new content.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
