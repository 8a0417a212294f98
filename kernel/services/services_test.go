package services

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
	"github.com/youwol/datamanager/kernel/runner/runnertest"
	"github.com/youwol/datamanager/kernel/tasks"
)

func testConfig(t *testing.T) *model.Config {
	dir := t.TempDir()
	cfg := model.DefaultConfig()
	cfg.WorkDir = dir
	cfg.Keycloak.StatusFile = filepath.Join(dir, "kc.status")
	cfg.Keycloak.ScriptFile = filepath.Join(dir, "kc.sh")
	cfg.Archive.Backend = model.ArchiveBackendLocal
	cfg.Archive.LocalDir = filepath.Join(dir, "archives")
	cfg.Maintenance.Enable = false
	cfg.Minio.LocalAccessKey = "local"
	cfg.Minio.LocalSecretKey = "local-secret"
	cfg.S3.Host = "s3.example.com"
	cfg.S3.AccessKey = "cluster"
	cfg.S3.SecretKey = "cluster-secret"
	cfg.Job.Uuid = "job"
	cfg.Job.TypeBackup = "daily"
	return cfg
}

func newServices(cfg *model.Config) *Services {
	s := New(cfg, io.Discard, io.Discard)
	s.Exec = runnertest.NewRecorder(func(runner.Invocation) runnertest.Response { return runnertest.Response{} })
	return s
}

func TestBackupSelectsSubtasks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Job.Subtasks = []string{"cassandra", "keycloak"}
	s := newServices(cfg)
	defer func() { _ = s.Close() }()

	backup, err := s.Backup(context.Background())
	require.NoError(t, err)

	var names []string
	for _, st := range backup.Subtasks {
		names = append(names, st.Name())
	}
	assert.Equal(t, []string{"cassandra", "kc"}, names)
	assert.Equal(t, "job", backup.JobUuid)
	assert.Equal(t, "daily", backup.Folder)
}

func TestReadinessProbes(t *testing.T) {
	s := newServices(testConfig(t))

	all, err := model.ParseSubtasks(nil)
	require.NoError(t, err)
	waiter, err := s.Readiness(all)
	require.NoError(t, err)
	require.Len(t, waiter.Probes, 2)
	assert.Equal(t, "keycloak", waiter.Probes[0].Name())
	assert.Equal(t, "minio", waiter.Probes[1].Name())

	cql, err := model.ParseSubtasks([]string{"cassandra"})
	require.NoError(t, err)
	waiter, err = s.Readiness(cql)
	require.NoError(t, err)
	assert.Empty(t, waiter.Probes)
}

func TestRestoreOrder(t *testing.T) {
	s := newServices(testConfig(t))

	restore, err := s.Restore()
	require.NoError(t, err)
	require.Len(t, restore.Subtasks, 2)
	assert.IsType(t, &tasks.CassandraRestore{}, restore.Subtasks[0])
	assert.IsType(t, &tasks.S3Restore{}, restore.Subtasks[1])
	assert.False(t, restore.Subtasks[0].(*tasks.CassandraRestore).Overwrite)
	assert.False(t, restore.Subtasks[1].(*tasks.S3Restore).Overwrite)
}

func TestRestoreOverwrite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Job.RestoreOverwrite = true

	restore, err := newServices(cfg).Restore()
	require.NoError(t, err)
	require.Len(t, restore.Subtasks, 2)
	assert.True(t, restore.Subtasks[0].(*tasks.CassandraRestore).Overwrite)
	assert.True(t, restore.Subtasks[1].(*tasks.S3Restore).Overwrite)
}

func TestSetup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Job.RestoreArchiveName = "20240101000000_job.tgz"
	s := newServices(cfg)

	setup, err := s.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.KeycloakExport, setup.Direction)
	assert.Equal(t, cfg.Keycloak.ScriptFile, setup.ScriptPath)
	assert.Equal(t, []model.ArchiveItem{model.ArchiveMinio, model.ArchiveCql, model.ArchiveKeycloak}, setup.Items)
}

func TestConfigurationErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.WorkDir = ""
	_, err := newServices(cfg).Restore()
	assert.True(t, model.IsConfigurationError(err))

	cfg = testConfig(t)
	cfg.S3.Host = ""
	_, err = newServices(cfg).Restore()
	assert.True(t, model.IsConfigurationError(err))

	cfg = testConfig(t)
	cfg.Keycloak.Direction = "sideways"
	_, err = newServices(cfg).Setup(context.Background())
	assert.True(t, model.IsConfigurationError(err))

	cfg = testConfig(t)
	cfg.Job.Subtasks = []string{"all", "s3"}
	_, err = newServices(cfg).Backup(context.Background())
	assert.True(t, model.IsConfigurationError(err))
}

func TestEngineRunRequiresStatusFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keycloak.StatusFile = ""
	_, err := newServices(cfg).EngineRun()
	assert.True(t, model.IsConfigurationError(err))

	run, err := newServices(testConfig(t)).EngineRun()
	require.NoError(t, err)
	assert.NotNil(t, run.Admin)
	assert.NotNil(t, run.Dist)
}
