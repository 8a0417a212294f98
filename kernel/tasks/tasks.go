// Package tasks implements the backup, restore and setup jobs that move platform data
// between the cluster and archives.
package tasks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/objectstore"
)

// BackupLogName is the archive entry holding the log of the backup run.
const BackupLogName = "backup.log"

// ObjectStore is the S3 side of the jobs, implemented by *objectstore.Mc.
type ObjectStore interface {
	ClusterInfo(ctx context.Context) (map[string]interface{}, error)
	ClusterUsage(ctx context.Context, bucket string) (objectstore.Usage, error)
	BackupBucket(ctx context.Context, bucket string) error
	RestoreBucket(ctx context.Context, bucket string, removeExisting bool) error
	StopLocal(ctx context.Context) error
}

// CqlShell is the Cassandra side of the jobs, implemented by *cassandra.Cqlsh.
type CqlShell interface {
	ShowHost(ctx context.Context) (string, error)
	ShowVersion(ctx context.Context) (string, error)
	BackupDDL(ctx context.Context, keyspace, path string) error
	RestoreDDL(ctx context.Context, keyspace, path string, drop bool) error
	BackupTable(ctx context.Context, table, path string) error
	RestoreTable(ctx context.Context, table, path string, truncate bool) error
}

type ServerInfo interface {
	ServerVersion(ctx context.Context) (string, error)
}

type Waiter interface {
	Wait(ctx context.Context) error
}

// Layout locates the data of each archive item in the work directory.
type Layout struct {
	WorkDir string
}

func (l Layout) Item(item model.ArchiveItem) string {
	return filepath.Join(l.WorkDir, string(item))
}

func (l Layout) SchemaDir() string {
	return filepath.Join(l.Item(model.ArchiveCql), "schema")
}

func (l Layout) DataDir() string {
	return filepath.Join(l.Item(model.ArchiveCql), "data")
}

// ensureDir creates dir when create is set, fails when it is missing otherwise.
func ensureDir(dir string, create bool) (string, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, nil
	case err == nil:
		return "", errors.Errorf("'%s' is not a directory", dir)
	case !os.IsNotExist(err):
		return "", errors.Wrapf(err, "unable to stat '%s'", dir)
	case !create:
		return "", errors.Errorf("directory '%s' does not exist", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "unable to create '%s'", dir)
	}
	return dir, nil
}
