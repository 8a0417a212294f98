package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/youwol/datamanager/kernel/model"
)

// LocalStore keeps archives below a directory, typically a mounted volume.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := model.Require(model.EnvArchiveLocalDir, root); err != nil {
		return nil, err
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) Upload(_ context.Context, localPath, folder, name string) error {
	target := filepath.Join(s.Root, folder, name)
	if _, err := os.Stat(target); err == nil {
		return errors.Errorf("an archive named '%s' already exists in folder '%s'", name, folder)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "unable to create folder '%s'", folder)
	}
	return copyFile(localPath, target)
}

func (s *LocalStore) List(_ context.Context) ([]Entry, error) {
	folders, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list '%s'", s.Root)
	}
	var entries []Entry
	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.Root, folder.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list folder '%s'", folder.Name())
		}
		for _, f := range files {
			if f.IsDir() || !isArchive(f.Name()) {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return nil, errors.Wrapf(err, "unable to stat '%s'", f.Name())
			}
			entries = append(entries, Entry{Name: f.Name(), Folder: folder.Name(), Size: info.Size()})
		}
	}
	return entries, nil
}

func (s *LocalStore) Download(_ context.Context, entry Entry, localPath string) error {
	return copyFile(filepath.Join(s.Root, filepath.FromSlash(entry.Key())), localPath)
}

func (s *LocalStore) Describe() map[string]string {
	return map[string]string{"backend": model.ArchiveBackendLocal, "root": s.Root}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "unable to open '%s'", src)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "unable to create '%s'", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "unable to copy '%s' to '%s'", src, dst)
	}
	return errors.Wrapf(out.Close(), "unable to close '%s'", dst)
}
