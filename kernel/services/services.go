// Package services builds the shared components of a command from the configuration. Each
// component is created on first use and reused afterwards.
package services

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/youwol/datamanager/kernel/archive"
	"github.com/youwol/datamanager/kernel/cassandra"
	"github.com/youwol/datamanager/kernel/engine"
	"github.com/youwol/datamanager/kernel/keycloak"
	"github.com/youwol/datamanager/kernel/maintenance"
	"github.com/youwol/datamanager/kernel/metrics"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/objectstore"
	"github.com/youwol/datamanager/kernel/readiness"
	"github.com/youwol/datamanager/kernel/runner"
	"github.com/youwol/datamanager/kernel/store"
	"github.com/youwol/datamanager/kernel/tasks"
)

type Services struct {
	Config *model.Config
	Stdout io.Writer
	Stderr io.Writer
	// Exec overrides the process runner, for tests.
	Exec runner.Executor

	mu       sync.Mutex
	runner   *runner.Runner
	status   *store.StatusFile
	admin    *keycloak.Admin
	observer metrics.Observer
	mc       *objectstore.Mc
	archives archive.Store
}

func New(cfg *model.Config, stdout, stderr io.Writer) *Services {
	return &Services{Config: cfg, Stdout: stdout, Stderr: stderr}
}

func (s *Services) Executor() runner.Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Exec != nil {
		return s.Exec
	}
	if s.runner == nil {
		s.runner = runner.New(s.Stdout, s.Stderr)
	}
	return s.runner
}

// KeycloakStatus is the status file shared with the kc container.
func (s *Services) KeycloakStatus() (*store.StatusFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		if err := model.Require(model.EnvKeycloakStatusFile, s.Config.Keycloak.StatusFile); err != nil {
			return nil, err
		}
		s.status = store.NewStatusFile(s.Config.Keycloak.StatusFile, s.Stdout)
	}
	return s.status, nil
}

func (s *Services) Distribution() *keycloak.Distribution {
	return keycloak.NewDistribution(s.Executor(), s.Config)
}

func (s *Services) Admin() *keycloak.Admin {
	exec := s.Executor()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == nil {
		s.admin = keycloak.NewAdmin(exec, s.Config, keycloak.AdminLog)
	}
	return s.admin
}

func (s *Services) Observer() metrics.Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observer == nil {
		s.observer = metrics.New(s.Config.Metrics)
	}
	return s.observer
}

// EngineRun assembles the dependencies of a Keycloak workflow.
func (s *Services) EngineRun() (*engine.Run, error) {
	status, err := s.KeycloakStatus()
	if err != nil {
		return nil, err
	}
	return &engine.Run{
		Config:   s.Config,
		Store:    status,
		Dist:     s.Distribution(),
		Admin:    s.Admin(),
		Observer: s.Observer(),
	}, nil
}

func (s *Services) Mc() (*objectstore.Mc, error) {
	exec := s.Executor()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mc == nil {
		local := objectstore.LocalInstance(s.Config.Minio)
		cluster := objectstore.ClusterInstance(s.Config.S3)
		if err := local.Validate(objectstore.AliasLocal); err != nil {
			return nil, err
		}
		if err := cluster.Validate(objectstore.AliasCluster); err != nil {
			return nil, err
		}
		usage, err := objectstore.NewListingUsage(map[string]objectstore.Instance{
			objectstore.AliasLocal:   local,
			objectstore.AliasCluster: cluster,
		})
		if err != nil {
			return nil, err
		}
		s.mc = objectstore.NewMc(exec, s.Config, usage)
	}
	return s.mc, nil
}

func (s *Services) Cqlsh() *cassandra.Cqlsh {
	return cassandra.NewCqlsh(s.Executor(), s.Config, s.Config.LogPath(cassandra.LogName))
}

func (s *Services) ArchiveStore(ctx context.Context) (archive.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archives == nil {
		archives, err := archive.NewStore(ctx, s.Config.Archive)
		if err != nil {
			return nil, err
		}
		s.archives = archives
	}
	return s.archives, nil
}

// Readiness probes the kc container through its status file and the local minio through
// its health endpoint.
func (s *Services) Readiness(subtasks model.Subtasks) (*readiness.Waiter, error) {
	var probes []readiness.Probe
	if subtasks.Includes(model.SubtaskKeycloak) {
		status, err := s.KeycloakStatus()
		if err != nil {
			return nil, err
		}
		probes = append(probes, readiness.KeycloakProbe{Status: status})
	}
	if subtasks.Includes(model.SubtaskS3) {
		probes = append(probes, readiness.HttpProbe{
			Label: "minio",
			Url:   objectstore.LocalInstance(s.Config.Minio).HealthUrl(),
		})
	}
	return readiness.NewWaiter(probes...), nil
}

func (s *Services) Layout() tasks.Layout {
	return tasks.Layout{WorkDir: s.Config.WorkDir}
}

func (s *Services) subtasks() (model.Subtasks, error) {
	if err := model.Require(model.EnvWorkDir, s.Config.WorkDir); err != nil {
		return nil, err
	}
	return model.ParseSubtasks(s.Config.Job.Subtasks)
}

func (s *Services) Backup(ctx context.Context) (*tasks.Backup, error) {
	selected, err := s.subtasks()
	if err != nil {
		return nil, err
	}
	waiter, err := s.Readiness(selected)
	if err != nil {
		return nil, err
	}
	mode, err := maintenance.New(s.Config.Maintenance)
	if err != nil {
		return nil, err
	}
	archives, err := s.ArchiveStore(ctx)
	if err != nil {
		return nil, err
	}

	layout := s.Layout()
	backup := &tasks.Backup{
		Layout:      layout,
		JobUuid:     s.Config.Job.Uuid,
		Folder:      s.Config.Job.TypeBackup,
		LogFile:     s.Config.LogFile,
		Readiness:   waiter,
		Maintenance: mode,
		Store:       archives,
	}
	if selected.Includes(model.SubtaskS3) {
		mc, err := s.Mc()
		if err != nil {
			return nil, err
		}
		backup.Subtasks = append(backup.Subtasks, &tasks.S3Backup{
			Layout:  layout,
			Objects: mc,
			Buckets: s.Config.Job.Buckets,
			Url:     mc.Cluster.BaseUrl(),
		})
	}
	if selected.Includes(model.SubtaskCassandra) {
		backup.Subtasks = append(backup.Subtasks, &tasks.CassandraBackup{
			Layout:    layout,
			Cql:       s.Cqlsh(),
			Keyspaces: s.Config.Job.Keyspaces,
			Tables:    s.Config.Job.Tables,
		})
	}
	if selected.Includes(model.SubtaskKeycloak) {
		status, err := s.KeycloakStatus()
		if err != nil {
			return nil, err
		}
		backup.Subtasks = append(backup.Subtasks, &tasks.KeycloakBackup{Layout: layout, Server: s.Admin(), Status: status})
	}
	return backup, nil
}

func (s *Services) Restore() (*tasks.Restore, error) {
	selected, err := s.subtasks()
	if err != nil {
		return nil, err
	}
	waiter, err := s.Readiness(selected)
	if err != nil {
		return nil, err
	}

	layout := s.Layout()
	restore := &tasks.Restore{Readiness: waiter}
	if selected.Includes(model.SubtaskCassandra) {
		restore.Subtasks = append(restore.Subtasks, &tasks.CassandraRestore{
			Layout:    layout,
			Cql:       s.Cqlsh(),
			Keyspaces: s.Config.Job.Keyspaces,
			Tables:    s.Config.Job.Tables,
			Overwrite: s.Config.Job.RestoreOverwrite,
		})
	}
	if selected.Includes(model.SubtaskS3) {
		mc, err := s.Mc()
		if err != nil {
			return nil, err
		}
		restore.Subtasks = append(restore.Subtasks, &tasks.S3Restore{
			Layout:    layout,
			Objects:   mc,
			Buckets:   s.Config.Job.Buckets,
			Overwrite: s.Config.Job.RestoreOverwrite,
		})
	}
	return restore, nil
}

func (s *Services) Setup(ctx context.Context) (*tasks.Setup, error) {
	selected, err := s.subtasks()
	if err != nil {
		return nil, err
	}
	status, err := s.KeycloakStatus()
	if err != nil {
		return nil, err
	}
	direction, err := tasks.ParseDirection(s.Config.Keycloak.Direction)
	if err != nil {
		return nil, err
	}
	archives, err := s.ArchiveStore(ctx)
	if err != nil {
		return nil, err
	}
	return &tasks.Setup{
		Layout:      s.Layout(),
		Status:      status,
		ScriptPath:  s.Config.Keycloak.ScriptFile,
		Direction:   direction,
		Store:       archives,
		ArchiveName: s.Config.Job.RestoreArchiveName,
		Items:       selected.Items(),
	}, nil
}

// Close releases the runner log handles, the metrics client and the archive connection.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	if s.runner != nil {
		first = s.runner.Close()
	}
	if s.observer != nil {
		s.observer.Close()
	}
	if closer, ok := s.archives.(io.Closer); ok {
		if err := closer.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "unable to close archive store")
		}
	}
	return first
}
