package archive

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/youwol/datamanager/kernel/model"
)

const Extension = ".tgz"

// Entry is an archive held by a Store.
type Entry struct {
	// Name is the file name, unique across folders.
	Name   string
	Folder string
	Size   int64
}

func (e Entry) Key() string {
	return path.Join(e.Folder, e.Name)
}

// Store keeps archives in folders named after the backup type.
type Store interface {
	// Upload fails if an archive with the same name already exists in folder.
	Upload(ctx context.Context, localPath, folder, name string) error
	// List returns every archive of every folder.
	List(ctx context.Context) ([]Entry, error)
	Download(ctx context.Context, entry Entry, localPath string) error
	// Describe is recorded in the archive metadata.
	Describe() map[string]string
}

// UploadName is <yyyymmddHHMMSS>_<job>.tgz.
func UploadName(at time.Time, jobUuid string) string {
	return fmt.Sprintf("%s_%s%s", at.Format("20060102150405"), jobUuid, Extension)
}

// Latest returns the archive with the greatest name.
func Latest(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	sorted := append([]Entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted[len(sorted)-1], true
}

// Find returns the only archive named name. A missing archive is reported with found false,
// several are an error.
func Find(entries []Entry, name string) (Entry, bool, error) {
	var matches []Entry
	for _, e := range entries {
		if e.Name == name {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		return Entry{}, false, errors.Errorf("more than one archive named '%s'", name)
	}
}

func isArchive(name string) bool {
	return strings.HasSuffix(name, Extension)
}

// NewStore builds the backend selected by the configuration.
func NewStore(ctx context.Context, cfg model.ArchiveConfig) (Store, error) {
	switch cfg.Backend {
	case model.ArchiveBackendS3:
		return NewS3Store(cfg.S3)
	case model.ArchiveBackendSftp:
		return DialSftpStore(ctx, cfg.Sftp)
	case model.ArchiveBackendLocal:
		return NewLocalStore(cfg.LocalDir)
	default:
		return nil, model.NewConfigurationError(model.EnvArchiveBackend, "unknown archive backend '%s'", cfg.Backend)
	}
}
