package tasks

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/archive"
	"github.com/youwol/datamanager/kernel/maintenance"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/readiness"
	"github.com/youwol/datamanager/kernel/store"
)

// BackupSubtask produces the data of one archive item.
type BackupSubtask interface {
	Name() string
	Item() model.ArchiveItem
	// Metadata is recorded in metadata.json under Name.
	Metadata(ctx context.Context) (interface{}, error)
	// Prepare runs before the maintenance mode is entered.
	Prepare(ctx context.Context) error
	// Run runs inside the maintenance mode.
	Run(ctx context.Context) error
	// Dir returns the directory archived as Item.
	Dir() (string, error)
}

type Backup struct {
	Layout      Layout
	JobUuid     string
	Folder      string
	LogFile     string
	Subtasks    []BackupSubtask
	Readiness   Waiter
	Maintenance maintenance.Mode
	Store       archive.Store
	Now         func() time.Time
}

func (b *Backup) Validate() error {
	return model.RequireAll(model.EnvJobUuid, b.JobUuid, model.EnvTypeBackup, b.Folder)
}

// Run waits for the containers, collects metadata, runs every subtask in maintenance mode,
// then packs and uploads the archive. It returns the name of the uploaded archive.
func (b *Backup) Run(ctx context.Context) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	if err := b.Readiness.Wait(ctx); err != nil {
		return "", err
	}

	creator := archive.NewCreator(b.Layout.WorkDir, b.JobUuid)
	for _, st := range b.Subtasks {
		meta, err := st.Metadata(ctx)
		if err != nil {
			return "", errors.Wrapf(err, "unable to collect metadata of '%s'", st.Name())
		}
		creator.AddMetadata(st.Name(), meta)
	}
	creator.AddMetadata("archive_store", b.Store.Describe())

	for _, st := range b.Subtasks {
		logrus.Infof("preparing '%s'", st.Name())
		if err := st.Prepare(ctx); err != nil {
			return "", errors.Wrapf(err, "unable to prepare '%s'", st.Name())
		}
	}

	err := maintenance.With(ctx, b.Maintenance, func() error {
		for _, st := range b.Subtasks {
			logrus.Infof("running '%s'", st.Name())
			if err := st.Run(ctx); err != nil {
				return errors.Wrapf(err, "subtask '%s' failed", st.Name())
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	for _, st := range b.Subtasks {
		dir, err := st.Dir()
		if err != nil {
			return "", err
		}
		creator.AddItem(dir, string(st.Item()))
	}
	if b.LogFile != "" {
		if _, err := os.Stat(b.LogFile); err == nil {
			creator.AddItem(b.LogFile, BackupLogName)
		}
	}

	path, err := creator.Finalize()
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(path) }()

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	name := archive.UploadName(now(), b.JobUuid)
	if err := b.Store.Upload(ctx, path, b.Folder, name); err != nil {
		return "", err
	}
	logrus.Infof("archive '%s' uploaded to folder '%s'", name, b.Folder)
	return name, nil
}

type S3Backup struct {
	Layout  Layout
	Objects ObjectStore
	Buckets []string
	Url     string
}

func (s *S3Backup) Name() string            { return "s3" }
func (s *S3Backup) Item() model.ArchiveItem { return model.ArchiveMinio }

func (s *S3Backup) Metadata(ctx context.Context) (interface{}, error) {
	info, err := s.Objects.ClusterInfo(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"url": s.Url, "info": info}, nil
}

// Prepare reads the usage of every cluster bucket ahead of the mirror.
func (s *S3Backup) Prepare(ctx context.Context) error {
	for _, bucket := range s.Buckets {
		usage, err := s.Objects.ClusterUsage(ctx, bucket)
		if err != nil {
			return err
		}
		logrus.Infof("cluster bucket '%s': %s", bucket, usage)
	}
	return nil
}

func (s *S3Backup) Run(ctx context.Context) error {
	for _, bucket := range s.Buckets {
		if err := s.Objects.BackupBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return s.Objects.StopLocal(ctx)
}

func (s *S3Backup) Dir() (string, error) {
	return ensureDir(s.Layout.Item(model.ArchiveMinio), false)
}

type CassandraBackup struct {
	Layout    Layout
	Cql       CqlShell
	Keyspaces []string
	Tables    []string
}

func (c *CassandraBackup) Name() string            { return "cassandra" }
func (c *CassandraBackup) Item() model.ArchiveItem { return model.ArchiveCql }

func (c *CassandraBackup) Metadata(ctx context.Context) (interface{}, error) {
	host, err := c.Cql.ShowHost(ctx)
	if err != nil {
		return nil, err
	}
	version, err := c.Cql.ShowVersion(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"host": host, "versions": version}, nil
}

func (c *CassandraBackup) Prepare(context.Context) error { return nil }

func (c *CassandraBackup) Run(ctx context.Context) error {
	schema, err := ensureDir(c.Layout.SchemaDir(), true)
	if err != nil {
		return err
	}
	for _, ks := range c.Keyspaces {
		if err := c.Cql.BackupDDL(ctx, ks, filepath.Join(schema, ks+".cql")); err != nil {
			return err
		}
	}
	data, err := ensureDir(c.Layout.DataDir(), true)
	if err != nil {
		return err
	}
	for _, table := range c.Tables {
		if err := c.Cql.BackupTable(ctx, table, filepath.Join(data, table+".csv")); err != nil {
			return err
		}
	}
	return nil
}

func (c *CassandraBackup) Dir() (string, error) {
	return ensureDir(c.Layout.Item(model.ArchiveCql), true)
}

// KeycloakBackup archives the export directory filled by the kc container. The export runs
// there; Run waits for the container to report DONE through the status file.
type KeycloakBackup struct {
	Layout Layout
	Server ServerInfo
	Status store.PhaseStore
	// Interval defaults to readiness.DefaultInterval. A zero Timeout waits until cancelled.
	Interval time.Duration
	Timeout  time.Duration
}

func (k *KeycloakBackup) Name() string            { return "kc" }
func (k *KeycloakBackup) Item() model.ArchiveItem { return model.ArchiveKeycloak }

func (k *KeycloakBackup) Metadata(ctx context.Context) (interface{}, error) {
	version, err := k.Server.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"server_version": version}, nil
}

func (k *KeycloakBackup) Prepare(context.Context) error { return nil }

func (k *KeycloakBackup) Run(ctx context.Context) error {
	if k.Status == nil {
		return errors.New("no keycloak status store")
	}
	return readiness.AwaitPhase(ctx, k.Status, model.PhaseDone, k.Interval, k.Timeout)
}

func (k *KeycloakBackup) Dir() (string, error) {
	return ensureDir(k.Layout.Item(model.ArchiveKeycloak), true)
}
