package loader

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/youwol/datamanager/kernel/model"
	"gopkg.in/yaml.v2"
)

// LoadConfig reads the optional YAML file at path on top of the defaults, then overlays the
// environment. An empty path skips the file.
func LoadConfig(path string) (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read config file '%s'", path)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "unable to parse config file '%s'", path)
		}
		if cfg.Keycloak.ClientSecrets == nil {
			cfg.Keycloak.ClientSecrets = make(map[string]string)
		}
	}

	if err := cfg.ApplyEnv(viper.New()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StatusFile resolves the Keycloak status file from the environment or the YAML file at path
// without validating any other setting. It returns "" when neither names one.
func StatusFile(path string) string {
	env := viper.New()
	if err := env.BindEnv("status_file", model.EnvKeycloakStatusFile); err == nil {
		if v := strings.TrimSpace(env.GetString("status_file")); v != "" {
			return v
		}
	}
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var partial struct {
		Keycloak struct {
			StatusFile string `yaml:"status_file"`
		} `yaml:"keycloak"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return ""
	}
	return strings.TrimSpace(partial.Keycloak.StatusFile)
}

// Dump renders a config as YAML with every secret masked.
func Dump(cfg *model.Config) ([]byte, error) {
	masked := *cfg
	masked.Keycloak.Password = mask(masked.Keycloak.Password)
	masked.Keycloak.ClientSecrets = make(map[string]string, len(cfg.Keycloak.ClientSecrets))
	for k, v := range cfg.Keycloak.ClientSecrets {
		masked.Keycloak.ClientSecrets[k] = mask(v)
	}
	masked.Minio.LocalSecretKey = mask(masked.Minio.LocalSecretKey)
	masked.S3.SecretKey = mask(masked.S3.SecretKey)
	masked.Archive.S3.SecretKey = mask(masked.Archive.S3.SecretKey)
	masked.Archive.Sftp.Password = mask(masked.Archive.Sftp.Password)
	masked.Metrics.InfluxToken = mask(masked.Metrics.InfluxToken)
	return yaml.Marshal(&masked)
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return "********"
}
