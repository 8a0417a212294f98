package model

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	EnvWorkDir                  = "PATH_WORK_DIR"
	EnvLogFile                  = "PATH_LOG_FILE"
	EnvLogDir                   = "PATH_LOG_DIR"
	EnvKeycloakStatusFile       = "PATH_KEYCLOAK_STATUS_FILE"
	EnvKeycloakScriptFile       = "PATH_KEYCLOAK_SCRIPT"
	EnvKeycloakBinDir           = "KEYCLOAK_BIN_DIR"
	EnvKeycloakExportDir        = "KEYCLOAK_EXPORT_DIR"
	EnvKeycloakBaseUrl          = "KEYCLOAK_BASE_URL"
	EnvKeycloakAdminRealm       = "KEYCLOAK_ADMIN_REALM"
	EnvKeycloakUsername         = "KEYCLOAK_USERNAME"
	EnvKeycloakPassword         = "KEYCLOAK_PASSWORD"
	EnvKeycloakOptimized        = "KEYCLOAK_OPTIMIZED"
	EnvKeycloakRotateKeys       = "KEYCLOAK_ROTATE_KEYS"
	EnvKeycloakRedirectUris     = "KEYCLOAK_WEBPM_REDIRECT_URIS"
	EnvKeycloakScript           = "KEYCLOAK_SCRIPT"
	EnvKeycloakAdminWaitSeconds = "KEYCLOAK_ADMIN_WAIT_SECONDS"
	EnvCqlshCommand             = "CQLSH_COMMAND"
	EnvCqlHost                  = "CQL_HOST"
	EnvMinioClient              = "PATH_MINIO_CLIENT"
	EnvMinioClientConfig        = "PATH_MINIO_CLIENT_CONFIG"
	EnvMinioLocalAccessKey      = "MINIO_LOCAL_ACCESS_KEY"
	EnvMinioLocalSecretKey      = "MINIO_LOCAL_SECRET_KEY"
	EnvMinioLocalPort           = "MINIO_LOCAL_PORT"
	EnvS3AccessKey              = "S3_ACCESS_KEY"
	EnvS3SecretKey              = "S3_SECRET_KEY"
	EnvS3Host                   = "S3_HOST"
	EnvS3Port                   = "S3_PORT"
	EnvS3Tls                    = "S3_TLS"
	EnvArchiveBackend           = "ARCHIVE_BACKEND"
	EnvArchiveS3Endpoint        = "ARCHIVE_S3_ENDPOINT"
	EnvArchiveS3Region          = "ARCHIVE_S3_REGION"
	EnvArchiveS3Bucket          = "ARCHIVE_S3_BUCKET"
	EnvArchiveS3AccessKey       = "ARCHIVE_S3_ACCESS_KEY"
	EnvArchiveS3SecretKey       = "ARCHIVE_S3_SECRET_KEY"
	EnvArchiveSftpHost          = "ARCHIVE_SFTP_HOST"
	EnvArchiveSftpPort          = "ARCHIVE_SFTP_PORT"
	EnvArchiveSftpUser          = "ARCHIVE_SFTP_USER"
	EnvArchiveSftpPassword      = "ARCHIVE_SFTP_PASSWORD"
	EnvArchiveSftpKeyFile       = "ARCHIVE_SFTP_KEY_FILE"
	EnvArchiveSftpKnownHosts    = "ARCHIVE_SFTP_KNOWN_HOSTS"
	EnvArchiveSftpDir           = "ARCHIVE_SFTP_DIR"
	EnvArchiveLocalDir          = "ARCHIVE_LOCAL_DIR"
	EnvMaintenanceEnable        = "MAINTENANCE_ENABLE"
	EnvMaintenanceNamespace     = "MAINTENANCE_NAMESPACE"
	EnvMaintenanceIngressName   = "MAINTENANCE_INGRESS_NAME"
	EnvMaintenanceIngressClass  = "MAINTENANCE_INGRESS_CLASS_NAME"
	EnvMaintenanceConfigMapName = "MAINTENANCE_CONFIG_MAP_NAME"
	EnvMaintenanceConfigMapKey  = "MAINTENANCE_CONFIG_MAP_KEY"
	EnvMaintenanceConfigMapVal  = "MAINTENANCE_CONFIG_MAP_VALUE"
	EnvMaintenanceKubeConfig    = "MAINTENANCE_KUBE_CONFIG"
	EnvMaintenanceKubeContext   = "MAINTENANCE_KUBE_CONFIG_CONTEXT"
	EnvJobUuid                  = "JOB_UUID"
	EnvTypeBackup               = "TYPE_BACKUP"
	EnvRestoreArchiveName       = "RESTORE_ARCHIVE_NAME"
	EnvRestoreOverwrite         = "RESTORE_OVERWRITE"
	EnvJobSubtasks              = "JOB_SUBTASKS"
	EnvCqlKeyspaces             = "CQL_KEYSPACES"
	EnvCqlTables                = "CQL_TABLES"
	EnvS3Buckets                = "S3_BUCKETS"
	EnvInfluxUrl                = "INFLUXDB_URL"
	EnvInfluxToken              = "INFLUXDB_TOKEN"
	EnvInfluxOrg                = "INFLUXDB_ORG"
	EnvInfluxBucket             = "INFLUXDB_BUCKET"
)

var (
	trueStrings  = []string{"true", "True", "yes", "y"}
	falseStrings = []string{"false", "False", "no", "n"}
)

type envBinding struct {
	env   string
	apply func(c *Config, raw string) error
}

func str(target func(c *Config) *string) func(c *Config, raw string) error {
	return func(c *Config, raw string) error {
		*target(c) = raw
		return nil
	}
}

func boolean(env string, target func(c *Config) *bool) func(c *Config, raw string) error {
	return func(c *Config, raw string) error {
		b, err := ParseBool(env, raw)
		if err != nil {
			return err
		}
		*target(c) = b
		return nil
	}
}

func integer(env string, target func(c *Config) *int) func(c *Config, raw string) error {
	return func(c *Config, raw string) error {
		i, err := ParseInt(env, raw)
		if err != nil {
			return err
		}
		*target(c) = i
		return nil
	}
}

func list(sep string, target func(c *Config) *[]string) func(c *Config, raw string) error {
	return func(c *Config, raw string) error {
		*target(c) = SplitList(raw, sep)
		return nil
	}
}

func bindings() []envBinding {
	b := []envBinding{
		{EnvWorkDir, str(func(c *Config) *string { return &c.WorkDir })},
		{EnvLogFile, str(func(c *Config) *string { return &c.LogFile })},
		{EnvLogDir, str(func(c *Config) *string { return &c.LogDir })},
		{EnvKeycloakStatusFile, str(func(c *Config) *string { return &c.Keycloak.StatusFile })},
		{EnvKeycloakScriptFile, str(func(c *Config) *string { return &c.Keycloak.ScriptFile })},
		{EnvKeycloakBinDir, str(func(c *Config) *string { return &c.Keycloak.BinDir })},
		{EnvKeycloakExportDir, str(func(c *Config) *string { return &c.Keycloak.ExportDir })},
		{EnvKeycloakBaseUrl, str(func(c *Config) *string { return &c.Keycloak.BaseUrl })},
		{EnvKeycloakAdminRealm, str(func(c *Config) *string { return &c.Keycloak.AdminRealm })},
		{EnvKeycloakUsername, str(func(c *Config) *string { return &c.Keycloak.Username })},
		{EnvKeycloakPassword, str(func(c *Config) *string { return &c.Keycloak.Password })},
		{EnvKeycloakOptimized, boolean(EnvKeycloakOptimized, func(c *Config) *bool { return &c.Keycloak.Optimized })},
		{EnvKeycloakRotateKeys, str(func(c *Config) *string { return &c.Keycloak.RotateKeys })},
		{EnvKeycloakRedirectUris, list(",", func(c *Config) *[]string { return &c.Keycloak.RedirectUris })},
		{EnvKeycloakScript, str(func(c *Config) *string { return &c.Keycloak.Direction })},
		{EnvKeycloakAdminWaitSeconds, integer(EnvKeycloakAdminWaitSeconds, func(c *Config) *int { return &c.Keycloak.AdminWaitSeconds })},
		{EnvCqlshCommand, str(func(c *Config) *string { return &c.Cql.Command })},
		{EnvCqlHost, str(func(c *Config) *string { return &c.Cql.Host })},
		{EnvMinioClient, str(func(c *Config) *string { return &c.Minio.ClientPath })},
		{EnvMinioClientConfig, str(func(c *Config) *string { return &c.Minio.ConfigDir })},
		{EnvMinioLocalAccessKey, str(func(c *Config) *string { return &c.Minio.LocalAccessKey })},
		{EnvMinioLocalSecretKey, str(func(c *Config) *string { return &c.Minio.LocalSecretKey })},
		{EnvMinioLocalPort, integer(EnvMinioLocalPort, func(c *Config) *int { return &c.Minio.LocalPort })},
		{EnvS3AccessKey, str(func(c *Config) *string { return &c.S3.AccessKey })},
		{EnvS3SecretKey, str(func(c *Config) *string { return &c.S3.SecretKey })},
		{EnvS3Host, str(func(c *Config) *string { return &c.S3.Host })},
		{EnvS3Port, integer(EnvS3Port, func(c *Config) *int { return &c.S3.Port })},
		{EnvS3Tls, boolean(EnvS3Tls, func(c *Config) *bool { return &c.S3.TLS })},
		{EnvArchiveBackend, str(func(c *Config) *string { return &c.Archive.Backend })},
		{EnvArchiveS3Endpoint, str(func(c *Config) *string { return &c.Archive.S3.Endpoint })},
		{EnvArchiveS3Region, str(func(c *Config) *string { return &c.Archive.S3.Region })},
		{EnvArchiveS3Bucket, str(func(c *Config) *string { return &c.Archive.S3.Bucket })},
		{EnvArchiveS3AccessKey, str(func(c *Config) *string { return &c.Archive.S3.AccessKey })},
		{EnvArchiveS3SecretKey, str(func(c *Config) *string { return &c.Archive.S3.SecretKey })},
		{EnvArchiveSftpHost, str(func(c *Config) *string { return &c.Archive.Sftp.Host })},
		{EnvArchiveSftpPort, integer(EnvArchiveSftpPort, func(c *Config) *int { return &c.Archive.Sftp.Port })},
		{EnvArchiveSftpUser, str(func(c *Config) *string { return &c.Archive.Sftp.User })},
		{EnvArchiveSftpPassword, str(func(c *Config) *string { return &c.Archive.Sftp.Password })},
		{EnvArchiveSftpKeyFile, str(func(c *Config) *string { return &c.Archive.Sftp.KeyFile })},
		{EnvArchiveSftpKnownHosts, str(func(c *Config) *string { return &c.Archive.Sftp.KnownHosts })},
		{EnvArchiveSftpDir, str(func(c *Config) *string { return &c.Archive.Sftp.Dir })},
		{EnvArchiveLocalDir, str(func(c *Config) *string { return &c.Archive.LocalDir })},
		{EnvMaintenanceEnable, boolean(EnvMaintenanceEnable, func(c *Config) *bool { return &c.Maintenance.Enable })},
		{EnvMaintenanceNamespace, str(func(c *Config) *string { return &c.Maintenance.Namespace })},
		{EnvMaintenanceIngressName, str(func(c *Config) *string { return &c.Maintenance.IngressName })},
		{EnvMaintenanceIngressClass, str(func(c *Config) *string { return &c.Maintenance.IngressClassName })},
		{EnvMaintenanceConfigMapName, str(func(c *Config) *string { return &c.Maintenance.ConfigMapName })},
		{EnvMaintenanceConfigMapKey, str(func(c *Config) *string { return &c.Maintenance.ConfigMapKey })},
		{EnvMaintenanceConfigMapVal, str(func(c *Config) *string { return &c.Maintenance.ConfigMapValue })},
		{EnvMaintenanceKubeConfig, str(func(c *Config) *string { return &c.Maintenance.KubeConfig })},
		{EnvMaintenanceKubeContext, str(func(c *Config) *string { return &c.Maintenance.KubeContext })},
		{EnvJobUuid, str(func(c *Config) *string { return &c.Job.Uuid })},
		{EnvTypeBackup, str(func(c *Config) *string { return &c.Job.TypeBackup })},
		{EnvRestoreArchiveName, str(func(c *Config) *string { return &c.Job.RestoreArchiveName })},
		{EnvRestoreOverwrite, boolean(EnvRestoreOverwrite, func(c *Config) *bool { return &c.Job.RestoreOverwrite })},
		{EnvJobSubtasks, list(":", func(c *Config) *[]string { return &c.Job.Subtasks })},
		{EnvCqlKeyspaces, list(":", func(c *Config) *[]string { return &c.Job.Keyspaces })},
		{EnvCqlTables, list(":", func(c *Config) *[]string { return &c.Job.Tables })},
		{EnvS3Buckets, list(":", func(c *Config) *[]string { return &c.Job.Buckets })},
		{EnvInfluxUrl, str(func(c *Config) *string { return &c.Metrics.InfluxUrl })},
		{EnvInfluxToken, str(func(c *Config) *string { return &c.Metrics.InfluxToken })},
		{EnvInfluxOrg, str(func(c *Config) *string { return &c.Metrics.InfluxOrg })},
		{EnvInfluxBucket, str(func(c *Config) *string { return &c.Metrics.InfluxBucket })},
	}
	for _, clientId := range KnownClients {
		id := clientId
		b = append(b, envBinding{ClientSecretEnv(id), func(c *Config, raw string) error {
			if c.Keycloak.ClientSecrets == nil {
				c.Keycloak.ClientSecrets = make(map[string]string)
			}
			c.Keycloak.ClientSecrets[id] = raw
			return nil
		}})
	}
	return b
}

// ApplyEnv overlays every environment variable bound in v onto c. Variables that are not
// set leave the current value in place.
func (c *Config) ApplyEnv(v *viper.Viper) error {
	for _, b := range bindings() {
		if err := v.BindEnv(b.env); err != nil {
			return err
		}
		if !v.IsSet(b.env) {
			continue
		}
		if err := b.apply(c, v.GetString(b.env)); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnv builds a Config from defaults and the process environment.
func LoadEnv() (*Config, error) {
	c := DefaultConfig()
	if err := c.ApplyEnv(viper.New()); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseBool accepts true/True/yes/y and false/False/no/n once trimmed.
func ParseBool(setting, raw string) (bool, error) {
	v := strings.TrimSpace(raw)
	for _, s := range trueStrings {
		if v == s {
			return true, nil
		}
	}
	for _, s := range falseStrings {
		if v == s {
			return false, nil
		}
	}
	return false, NewConfigurationError(setting, "value '%s' could not be parsed as a boolean", raw)
}

// ParseInt requires the trimmed value to be exactly a decimal integer.
func ParseInt(setting, raw string) (int, error) {
	v := strings.TrimSpace(raw)
	i, err := strconv.Atoi(v)
	if err != nil || strconv.Itoa(i) != v {
		return 0, NewConfigurationError(setting, "value '%s' could not be parsed as an integer", raw)
	}
	return i, nil
}

// SplitList splits on sep, trimming items and dropping empty ones. A value consisting of
// the separator alone yields an empty list.
func SplitList(raw, sep string) []string {
	var result []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
