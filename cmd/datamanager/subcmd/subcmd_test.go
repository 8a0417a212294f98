package subcmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youwol/datamanager/kernel/keycloak/keycloaktest"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
	"github.com/youwol/datamanager/kernel/store"
)

type testJob struct {
	dir        string
	configPath string
	statusPath string
	exportDir  string
}

func newTestJob(t *testing.T, extra string) *testJob {
	dir := t.TempDir()
	job := &testJob{
		dir:        dir,
		statusPath: filepath.Join(dir, "kc.status"),
		exportDir:  filepath.Join(dir, "export"),
	}
	require.NoError(t, os.MkdirAll(job.exportDir, 0755))

	yaml := fmt.Sprintf(`
work_dir: %s
keycloak:
  status_file: %s
  export_dir: %s
  base_url: http://localhost:8080
  username: admin
  password: admin-password
  optimized: true
archive:
  backend: local
  local_dir: %s
%s`, dir, job.statusPath, job.exportDir, filepath.Join(dir, "archives"), extra)
	job.configPath = writeTempYaml(t, yaml)
	return job
}

func writeTempYaml(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp yaml: %v", err)
	}
	return path
}

func useExecutor(t *testing.T, exec runner.Executor) {
	executor = exec
	t.Cleanup(func() { executor = nil })
}

func TestValidateCommand_ValidYAML(t *testing.T) {
	job := newTestJob(t, "job:\n  subtasks: [cassandra, s3]\n")

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--config", job.configPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate command failed: %v", err)
	}
}

func TestValidateCommand_InvalidPath(t *testing.T) {
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--config", "/nonexistent/path.yaml"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestValidateCommand_InvalidYAML(t *testing.T) {
	path := writeTempYaml(t, "invalid: yaml: content:")

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--config", path})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidateCommand_InvalidSettings(t *testing.T) {
	for _, extra := range []string{
		"job:\n  subtasks: [all, s3]\n",
		"job:\n  subtasks: [everything]\n",
	} {
		job := newTestJob(t, extra)
		cmd := NewValidateCommand()
		cmd.SetArgs([]string{"--config", job.configPath})

		err := cmd.Execute()
		assert.True(t, model.IsConfigurationError(err), "expected configuration error for %q, got %v", extra, err)
	}

	path := writeTempYaml(t, "keycloak:\n  rotate_keys: sometimes\n")
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"--config", path})
	assert.True(t, model.IsConfigurationError(cmd.Execute()))

	path = writeTempYaml(t, "archive:\n  backend: gdrive\n")
	cmd = NewValidateCommand()
	cmd.SetArgs([]string{"--config", path})
	assert.True(t, model.IsConfigurationError(cmd.Execute()))
}

func TestValidateCommand_DumpMasksSecrets(t *testing.T) {
	job := newTestJob(t, "")

	var out bytes.Buffer
	cmd := NewValidateCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", job.configPath, "--dump"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "export_dir: "+job.exportDir)
	assert.NotContains(t, out.String(), "admin-password")
}

func TestCleanupCommand(t *testing.T) {
	job := newTestJob(t, "")
	realm := filepath.Join(job.exportDir, model.Realm+"-realm.json")
	require.NoError(t, os.WriteFile(realm, []byte("{}"), 0644))

	srv := keycloaktest.NewServer()
	rec := srv.Recorder()
	useExecutor(t, rec)

	cmd := NewWorkflowCommand("cleanup", "cleanup")
	cmd.SetArgs([]string{"--config", job.configPath})
	require.NoError(t, cmd.Execute())

	assert.NoFileExists(t, realm)
	phase, err := store.NewStatusFile(job.statusPath, nil).Phase()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDone, phase)

	exports := rec.Matching("kc.sh export")
	require.Len(t, exports, 1)
	assert.True(t, exports[0].HasArgs("--optimized"))
}

func TestWorkflowCommand_FailureWritesError(t *testing.T) {
	job := newTestJob(t, "")

	srv := keycloaktest.NewServer()
	srv.Fail["kc.sh export"] = 3
	useExecutor(t, srv.Recorder())

	cmd := NewWorkflowCommand("export", "export")
	cmd.SetArgs([]string{"--config", job.configPath})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 1, model.ExitCode(err))

	phase, err := store.NewStatusFile(job.statusPath, nil).Phase()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseError, phase)
}

func TestKeysRotateCommand(t *testing.T) {
	job := newTestJob(t, "")

	srv := keycloaktest.NewServer()
	srv.AddProvider("rsa-generated", "rsa-generated", "RS256", "100")
	rec := srv.Recorder()
	useExecutor(t, rec)

	cmd := NewKeysRotateCommand()
	cmd.SetArgs([]string{"--config", job.configPath, "--mode", "reset"})
	require.NoError(t, cmd.Execute())

	assert.Len(t, rec.Matching("kcadm.sh delete"), 1)
	phase, err := store.NewStatusFile(job.statusPath, nil).Phase()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDone, phase)
}

func TestKeysRotateCommand_InvalidMode(t *testing.T) {
	for _, args := range [][]string{{"--mode", "sometimes"}, {}} {
		job := newTestJob(t, "")
		status := store.NewStatusFile(job.statusPath, nil)
		require.NoError(t, status.SetPhase(model.PhaseDone))

		srv := keycloaktest.NewServer()
		rec := srv.Recorder()
		useExecutor(t, rec)

		cmd := NewKeysRotateCommand()
		cmd.SetArgs(append([]string{"--config", job.configPath}, args...))
		err := cmd.Execute()
		assert.True(t, model.IsConfigurationError(err), "args %v: %v", args, err)
		assert.Equal(t, 1, model.ExitCode(err))
		assert.Empty(t, rec.Calls())

		phase, err := store.NewStatusFile(job.statusPath, nil).Phase()
		require.NoError(t, err)
		assert.Equal(t, model.PhaseError, phase, "args %v", args)
	}
}

func TestWorkflowCommand_InvalidConfigWritesError(t *testing.T) {
	job := newTestJob(t, "")
	require.NoError(t, store.NewStatusFile(job.statusPath, nil).SetPhase(model.PhaseDone))
	t.Setenv(model.EnvKeycloakOptimized, "maybe")
	useExecutor(t, keycloaktest.NewServer().Recorder())

	cmd := NewWorkflowCommand("export", "export")
	cmd.SetArgs([]string{"--config", job.configPath})
	err := cmd.Execute()
	assert.True(t, model.IsConfigurationError(err))
	assert.Equal(t, 1, model.ExitCode(err))

	phase, err := store.NewStatusFile(job.statusPath, nil).Phase()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseError, phase)
}

func TestKeysListCommand(t *testing.T) {
	job := newTestJob(t, "")

	srv := keycloaktest.NewServer()
	srv.AddProvider("rsa-generated", "rsa-generated", "RS256", "100")
	srv.AddProvider("hmac-generated", "hmac-generated", "HS256", "100")
	useExecutor(t, srv.Recorder())

	var out bytes.Buffer
	cmd := NewKeysListCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", job.configPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "rsa-generated")
	assert.Contains(t, out.String(), "HS256")
}

func TestStatusCommand(t *testing.T) {
	job := newTestJob(t, "")
	status := store.NewStatusFile(job.statusPath, nil)
	require.NoError(t, status.SetPhase(model.PhaseExporting))
	require.NoError(t, status.SetPhase(model.PhaseExported))
	require.NoError(t, os.WriteFile(filepath.Join(job.dir, "export.log"), []byte("exported\n"), 0644))

	var out bytes.Buffer
	cmd := NewStatusCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", job.configPath})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "status: EXPORTED")
	assert.Contains(t, text, "EXPORTING")
	assert.Contains(t, text, "export.log")
	assert.False(t, strings.Contains(text, "import.log"))
}

func TestStatusCommand_RequiresStatusFile(t *testing.T) {
	path := writeTempYaml(t, "work_dir: /tmp\n")

	cmd := NewStatusCommand()
	cmd.SetArgs([]string{"--config", path})
	assert.True(t, model.IsConfigurationError(cmd.Execute()))
}

func TestRestoreCommand_RequiresWorkDir(t *testing.T) {
	path := writeTempYaml(t, "job:\n  subtasks: [cassandra]\n")

	cmd := NewRestoreCommand()
	cmd.SetArgs([]string{"--config", path})
	assert.True(t, model.IsConfigurationError(cmd.Execute()))
}
