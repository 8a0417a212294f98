package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubtasks_DefaultsToAll(t *testing.T) {
	s, err := ParseSubtasks(nil)
	require.NoError(t, err)
	assert.True(t, s.Includes(SubtaskS3))
	assert.True(t, s.Includes(SubtaskCassandra))
	assert.True(t, s.Includes(SubtaskKeycloak))
	assert.Equal(t, []ArchiveItem{ArchiveMinio, ArchiveCql, ArchiveKeycloak}, s.Items())
}

func TestParseSubtasks_Selection(t *testing.T) {
	s, err := ParseSubtasks([]string{"keycloak", "s3"})
	require.NoError(t, err)
	assert.False(t, s.Includes(SubtaskCassandra))
	assert.Equal(t, []ArchiveItem{ArchiveMinio, ArchiveKeycloak}, s.Items())
}

func TestParseSubtasks_Invalid(t *testing.T) {
	_, err := ParseSubtasks([]string{"all", "s3"})
	assert.True(t, IsConfigurationError(err))

	_, err = ParseSubtasks([]string{"postgres"})
	assert.True(t, IsConfigurationError(err))
}
