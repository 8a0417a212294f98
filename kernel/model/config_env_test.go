package model

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "True", "yes", "y", " y "} {
		b, err := ParseBool("X", s)
		require.NoError(t, err)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "False", "no", "n"} {
		b, err := ParseBool("X", s)
		require.NoError(t, err)
		assert.False(t, b, s)
	}
	for _, s := range []string{"TRUE", "1", "on", ""} {
		_, err := ParseBool("X", s)
		assert.True(t, IsConfigurationError(err), s)
	}
}

func TestParseInt(t *testing.T) {
	i, err := ParseInt("X", " 9000 ")
	require.NoError(t, err)
	assert.Equal(t, 9000, i)

	for _, s := range []string{"9000a", "+12", "1.5", ""} {
		_, err := ParseInt("X", s)
		assert.True(t, IsConfigurationError(err), s)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList("a: b:", ":"))
	assert.Nil(t, SplitList(":", ":"))
	assert.Equal(t, []string{"https://a/*", "http://localhost:3000/*"}, SplitList("https://a/*,http://localhost:3000/*", ","))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvWorkDir, "/tmp/work")
	t.Setenv(EnvKeycloakOptimized, "yes")
	t.Setenv(EnvKeycloakRotateKeys, "rotate")
	t.Setenv(EnvKeycloakRedirectUris, "https://platform.youwol.com/*,http://localhost:2000/*")
	t.Setenv(EnvS3Port, "443")
	t.Setenv(EnvS3Buckets, "assets:files")
	t.Setenv(EnvRestoreOverwrite, "y")
	t.Setenv(ClientSecretEnv("youwol-platform"), "s3cr3t")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(viper.New()))

	assert.Equal(t, "/tmp/work", cfg.WorkDir)
	assert.True(t, cfg.Keycloak.Optimized)
	assert.Equal(t, "rotate", cfg.Keycloak.RotateKeys)
	assert.Equal(t, []string{"https://platform.youwol.com/*", "http://localhost:2000/*"}, cfg.Keycloak.RedirectUris)
	assert.Equal(t, 443, cfg.S3.Port)
	assert.Equal(t, []string{"assets", "files"}, cfg.Job.Buckets)
	assert.True(t, cfg.Job.RestoreOverwrite)
	assert.Equal(t, "s3cr3t", cfg.Keycloak.ClientSecrets["youwol-platform"])
	assert.Equal(t, "/opt/keycloak/bin", cfg.Keycloak.BinDir)
	assert.True(t, cfg.S3.TLS)
}

func TestDefaultConfig_RestoreKeepsData(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(viper.New()))
	assert.False(t, cfg.Job.RestoreOverwrite)
}

func TestApplyEnv_InvalidBoolean(t *testing.T) {
	t.Setenv(EnvKeycloakOptimized, "maybe")

	err := DefaultConfig().ApplyEnv(viper.New())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), EnvKeycloakOptimized)
}

func TestClientSecretEnv(t *testing.T) {
	assert.Equal(t, "KEYCLOAK_CLIENT_SECRET_ADMIN_CLI", ClientSecretEnv("admin-cli"))
	assert.Equal(t, "KEYCLOAK_CLIENT_SECRET_WEBPM", ClientSecretEnv("webpm"))
}

func TestConfig_LogPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkDir = "/work"
	assert.Equal(t, "/work/build.log", cfg.LogPath("build.log"))
	cfg.LogDir = "/logs"
	assert.Equal(t, "/logs/build.log", cfg.LogPath("build.log"))
}
