package model

import (
	"strings"
)

// ArchiveItem is a top-level entry of a backup archive.
type ArchiveItem string

const (
	ArchiveMinio    ArchiveItem = "minio"
	ArchiveCql      ArchiveItem = "cql"
	ArchiveKeycloak ArchiveItem = "kc"
	ArchiveMetadata ArchiveItem = "metadata.json"
)

type Subtask string

const (
	SubtaskAll       Subtask = "all"
	SubtaskS3        Subtask = "s3"
	SubtaskCassandra Subtask = "cassandra"
	SubtaskKeycloak  Subtask = "keycloak"
)

// Subtasks is the selection of job parts to run.
type Subtasks map[Subtask]bool

// ParseSubtasks validates a JOB_SUBTASKS list. An empty list means all.
func ParseSubtasks(values []string) (Subtasks, error) {
	if len(values) == 0 {
		values = []string{string(SubtaskAll)}
	}
	result := make(Subtasks)
	for _, v := range values {
		switch st := Subtask(strings.TrimSpace(v)); st {
		case SubtaskAll, SubtaskS3, SubtaskCassandra, SubtaskKeycloak:
			result[st] = true
		default:
			return nil, NewConfigurationError(EnvJobSubtasks, "unknown subtask '%s'", v)
		}
	}
	if result[SubtaskAll] && len(result) != 1 {
		return nil, NewConfigurationError(EnvJobSubtasks, "contains both 'all' and other elements")
	}
	return result, nil
}

func (s Subtasks) Includes(st Subtask) bool {
	return s[SubtaskAll] || s[st]
}

// Items lists the archive items matching the selection, in archive order.
func (s Subtasks) Items() []ArchiveItem {
	var items []ArchiveItem
	if s.Includes(SubtaskS3) {
		items = append(items, ArchiveMinio)
	}
	if s.Includes(SubtaskCassandra) {
		items = append(items, ArchiveCql)
	}
	if s.Includes(SubtaskKeycloak) {
		items = append(items, ArchiveKeycloak)
	}
	return items
}
