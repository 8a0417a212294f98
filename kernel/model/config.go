package model

import (
	"path/filepath"
	"strings"
)

// Config is the complete settings tree. It is filled from an optional YAML file and then
// overlaid with environment variables (see ApplyEnv).
type Config struct {
	WorkDir     string            `yaml:"work_dir"`
	LogFile     string            `yaml:"log_file"`
	LogDir      string            `yaml:"log_dir"`
	Keycloak    KeycloakConfig    `yaml:"keycloak"`
	Cql         CqlConfig         `yaml:"cql"`
	Minio       MinioConfig       `yaml:"minio"`
	S3          S3Config          `yaml:"s3"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Job         JobConfig         `yaml:"job"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type KeycloakConfig struct {
	StatusFile       string            `yaml:"status_file"`
	ScriptFile       string            `yaml:"script_file"`
	BinDir           string            `yaml:"bin_dir"`
	ExportDir        string            `yaml:"export_dir"`
	BaseUrl          string            `yaml:"base_url"`
	AdminRealm       string            `yaml:"admin_realm"`
	Username         string            `yaml:"username"`
	Password         string            `yaml:"password"`
	Optimized        bool              `yaml:"optimized"`
	RotateKeys       string            `yaml:"rotate_keys"`
	ClientSecrets    map[string]string `yaml:"client_secrets"`
	RedirectUris     []string          `yaml:"redirect_uris"`
	Direction        string            `yaml:"direction"`
	AdminWaitSeconds int               `yaml:"admin_wait_seconds"`
}

type CqlConfig struct {
	Command string `yaml:"command"`
	Host    string `yaml:"host"`
}

type MinioConfig struct {
	ClientPath     string `yaml:"client_path"`
	ConfigDir      string `yaml:"config_dir"`
	LocalAccessKey string `yaml:"local_access_key"`
	LocalSecretKey string `yaml:"local_secret_key"`
	LocalPort      int    `yaml:"local_port"`
}

type S3Config struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TLS       bool   `yaml:"tls"`
}

type ArchiveConfig struct {
	Backend string            `yaml:"backend"`
	S3      ArchiveS3Config   `yaml:"s3"`
	Sftp    ArchiveSftpConfig `yaml:"sftp"`
	// LocalDir is the root of the local backend, usually a mounted volume.
	LocalDir string `yaml:"local_dir"`
}

type ArchiveS3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type ArchiveSftpConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	KeyFile    string `yaml:"key_file"`
	KnownHosts string `yaml:"known_hosts"`
	Dir        string `yaml:"dir"`
}

type MaintenanceConfig struct {
	Enable           bool   `yaml:"enable"`
	Namespace        string `yaml:"namespace"`
	IngressName      string `yaml:"ingress_name"`
	IngressClassName string `yaml:"ingress_class_name"`
	ConfigMapName    string `yaml:"config_map_name"`
	ConfigMapKey     string `yaml:"config_map_key"`
	ConfigMapValue   string `yaml:"config_map_value"`
	KubeConfig       string `yaml:"kube_config"`
	KubeContext      string `yaml:"kube_context"`
}

type JobConfig struct {
	Uuid               string   `yaml:"uuid"`
	TypeBackup         string   `yaml:"type_backup"`
	RestoreArchiveName string   `yaml:"restore_archive_name"`
	// RestoreOverwrite drops keyspaces, truncates tables and removes cluster buckets before
	// restoring them.
	RestoreOverwrite   bool     `yaml:"restore_overwrite"`
	Subtasks           []string `yaml:"subtasks"`
	Keyspaces          []string `yaml:"keyspaces"`
	Tables             []string `yaml:"tables"`
	Buckets            []string `yaml:"buckets"`
}

type MetricsConfig struct {
	InfluxUrl    string `yaml:"influx_url"`
	InfluxToken  string `yaml:"influx_token"`
	InfluxOrg    string `yaml:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket"`
}

const (
	ArchiveBackendS3    = "s3"
	ArchiveBackendSftp  = "sftp"
	ArchiveBackendLocal = "local"
)

// DefaultConfig returns a Config carrying the defaults of every optional setting.
func DefaultConfig() *Config {
	return &Config{
		Keycloak: KeycloakConfig{
			BinDir:           "/opt/keycloak/bin",
			AdminRealm:       "master",
			ClientSecrets:    make(map[string]string),
			AdminWaitSeconds: 120,
		},
		Cql: CqlConfig{
			Command: "cqlsh",
		},
		Minio: MinioConfig{
			LocalPort: 9000,
		},
		S3: S3Config{
			Port: 9000,
			TLS:  true,
		},
		Archive: ArchiveConfig{
			Backend: ArchiveBackendS3,
			S3: ArchiveS3Config{
				Region: "us-east-1",
			},
			Sftp: ArchiveSftpConfig{
				Port: 22,
			},
		},
		Maintenance: MaintenanceConfig{
			Enable: true,
		},
	}
}

// LogPath resolves a log file name inside the configured log directory, defaulting to the
// work directory.
func (c *Config) LogPath(name string) string {
	dir := c.LogDir
	if dir == "" {
		dir = c.WorkDir
	}
	return filepath.Join(dir, name)
}

// ClientSecretEnv is the environment variable carrying the secret of a known client.
func ClientSecretEnv(clientId string) string {
	return "KEYCLOAK_CLIENT_SECRET_" + strings.ToUpper(strings.ReplaceAll(clientId, "-", "_"))
}

// Require fails with a ConfigurationError when value is blank.
func Require(setting, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewConfigurationError(setting, "not set or empty")
	}
	return nil
}

// RequireAll checks settings pairwise: setting name followed by value.
func RequireAll(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := Require(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
