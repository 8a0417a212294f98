package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/archive"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/store"
)

const SetupArchiveName = "setup_archive.tgz"

// Setup prepares the work directory before the other containers start: it flags the kc
// container as waiting, installs its script and extracts the selected archive items.
type Setup struct {
	Layout      Layout
	Status      store.PhaseStore
	ScriptPath  string
	Direction   model.KeycloakDirection
	Store       archive.Store
	ArchiveName string
	Items       []model.ArchiveItem
}

func ParseDirection(s string) (model.KeycloakDirection, error) {
	switch d := model.KeycloakDirection(s); d {
	case "":
		return model.KeycloakExport, nil
	case model.KeycloakImport, model.KeycloakExport:
		return d, nil
	default:
		return "", model.NewConfigurationError(model.EnvKeycloakScript, "unknown direction '%s' (expected 'import' or 'export')", s)
	}
}

// KeycloakScript is run by the kc container; it calls back into this binary.
func KeycloakScript(direction model.KeycloakDirection) string {
	return fmt.Sprintf("#!/bin/sh\nexec \"${DATAMANAGER_BIN:-datamanager}\" %s \"$@\"\n", direction)
}

func (s *Setup) Run(ctx context.Context) error {
	if err := s.Status.SetPhase(model.PhaseSetup); err != nil {
		return err
	}
	if s.ScriptPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.ScriptPath), 0755); err != nil {
			return errors.Wrapf(err, "unable to create dir of '%s'", s.ScriptPath)
		}
		if err := os.WriteFile(s.ScriptPath, []byte(KeycloakScript(s.Direction)), 0755); err != nil {
			return errors.Wrapf(err, "unable to write kc script '%s'", s.ScriptPath)
		}
		logrus.Infof("kc script '%s' set up for '%s'", s.ScriptPath, s.Direction)
	}

	entries, err := s.Store.List(ctx)
	if err != nil {
		return err
	}
	var entry archive.Entry
	if s.ArchiveName == "" {
		latest, found := archive.Latest(entries)
		if !found {
			logrus.Warn("no archive found, skipping setup")
			return nil
		}
		entry = latest
		logrus.Infof("using last archive '%s'", entry.Key())
	} else {
		named, found, err := archive.Find(entries, s.ArchiveName)
		if err != nil {
			return err
		}
		if !found {
			return errors.Errorf("archive named '%s' not found", s.ArchiveName)
		}
		entry = named
		logrus.Infof("using archive '%s'", entry.Key())
	}

	path := filepath.Join(s.Layout.WorkDir, SetupArchiveName)
	if err := s.Store.Download(ctx, entry, path); err != nil {
		return err
	}
	defer func() { _ = os.Remove(path) }()

	for _, item := range s.Items {
		n, err := archive.Extract(path, s.Layout.WorkDir, item)
		if err != nil {
			return err
		}
		logrus.Infof("extracted %d file(s) of '%s'", n, item)
	}
	return nil
}
