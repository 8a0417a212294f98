package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/youwol/datamanager/kernel/model"
)

func TestLoadConfig_Basic(t *testing.T) {
	yaml := `
work_dir: /data/work
keycloak:
  status_file: /data/kc/status
  export_dir: /data/kc/export
  base_url: http://localhost:8080
  username: admin
  optimized: true
  client_secrets:
    webpm: from-file
job:
  keyspaces: [assets, files]
archive:
  backend: sftp
  sftp:
    host: backup.local
`
	path := writeTempYaml(t, yaml)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.WorkDir != "/data/work" {
		t.Errorf("expected work dir '/data/work', got '%s'", cfg.WorkDir)
	}
	if !cfg.Keycloak.Optimized {
		t.Error("expected optimized to be set")
	}
	if cfg.Keycloak.ClientSecrets["webpm"] != "from-file" {
		t.Errorf("expected webpm secret from file, got '%s'", cfg.Keycloak.ClientSecrets["webpm"])
	}
	if len(cfg.Job.Keyspaces) != 2 {
		t.Fatalf("expected 2 keyspaces, got %d", len(cfg.Job.Keyspaces))
	}
	if cfg.Archive.Backend != model.ArchiveBackendSftp {
		t.Errorf("expected sftp backend, got '%s'", cfg.Archive.Backend)
	}
	// defaults survive a partial file
	if cfg.Archive.Sftp.Port != 22 {
		t.Errorf("expected default sftp port 22, got %d", cfg.Archive.Sftp.Port)
	}
	if cfg.Keycloak.AdminRealm != "master" {
		t.Errorf("expected default admin realm, got '%s'", cfg.Keycloak.AdminRealm)
	}
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	path := writeTempYaml(t, "work_dir: /from/file\n")
	t.Setenv(model.EnvWorkDir, "/from/env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.WorkDir != "/from/env" {
		t.Errorf("expected environment to win, got '%s'", cfg.WorkDir)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Cql.Command != "cqlsh" {
		t.Errorf("expected default cqlsh command, got '%s'", cfg.Cql.Command)
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := writeTempYaml(t, "keycloak:\n  realm_name: other\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDump_MasksSecrets(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Keycloak.Password = "hunter2"
	cfg.Keycloak.ClientSecrets["webpm"] = "webpm-secret"
	cfg.Archive.S3.SecretKey = "aws-secret"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	out := string(data)
	for _, secret := range []string{"hunter2", "webpm-secret", "aws-secret"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret '%s' leaked in dump", secret)
		}
	}
	if cfg.Keycloak.ClientSecrets["webpm"] != "webpm-secret" {
		t.Error("dump must not alter the source config")
	}
}

func writeTempYaml(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datamanager.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}
	return path
}

func TestStatusFile_ResolvedDespiteInvalidSettings(t *testing.T) {
	path := writeTempYaml(t, `
keycloak:
  status_file: /data/kc/status
  optimized: maybe
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected LoadConfig to reject the invalid boolean")
	}
	if got := StatusFile(path); got != "/data/kc/status" {
		t.Errorf("expected '/data/kc/status', got '%s'", got)
	}

	t.Setenv(model.EnvKeycloakStatusFile, "/env/status")
	if got := StatusFile(path); got != "/env/status" {
		t.Errorf("expected environment to win, got '%s'", got)
	}
}

func TestStatusFile_Unresolved(t *testing.T) {
	if got := StatusFile(""); got != "" {
		t.Errorf("expected no status file, got '%s'", got)
	}
	if got := StatusFile("/nonexistent/config.yaml"); got != "" {
		t.Errorf("expected no status file, got '%s'", got)
	}
}
