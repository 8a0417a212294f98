package tasks

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type RestoreSubtask interface {
	Name() string
	Run(ctx context.Context) error
}

// Restore loads the items extracted by the setup task back into the cluster. Keycloak data
// is imported by the kc container itself.
type Restore struct {
	Readiness Waiter
	Subtasks  []RestoreSubtask
}

func (r *Restore) Run(ctx context.Context) error {
	if err := r.Readiness.Wait(ctx); err != nil {
		return err
	}
	for _, st := range r.Subtasks {
		logrus.Infof("restoring '%s'", st.Name())
		if err := st.Run(ctx); err != nil {
			return errors.Wrapf(err, "subtask '%s' failed", st.Name())
		}
	}
	return nil
}

// CassandraRestore recreates every keyspace from its schema, then reloads every table.
// Overwrite drops each keyspace and truncates each table first.
type CassandraRestore struct {
	Layout    Layout
	Cql       CqlShell
	Keyspaces []string
	Tables    []string
	Overwrite bool
}

func (c *CassandraRestore) Name() string { return "cassandra" }

func (c *CassandraRestore) Run(ctx context.Context) error {
	schema, err := ensureDir(c.Layout.SchemaDir(), false)
	if err != nil {
		return err
	}
	for _, ks := range c.Keyspaces {
		if err := c.Cql.RestoreDDL(ctx, ks, filepath.Join(schema, ks+".cql"), c.Overwrite); err != nil {
			return err
		}
	}
	data, err := ensureDir(c.Layout.DataDir(), false)
	if err != nil {
		return err
	}
	for _, table := range c.Tables {
		if err := c.Cql.RestoreTable(ctx, table, filepath.Join(data, table+".csv"), c.Overwrite); err != nil {
			return err
		}
	}
	return nil
}

// S3Restore mirrors every local bucket to the cluster, then stops the local server.
// Overwrite removes the cluster bucket first.
type S3Restore struct {
	Layout    Layout
	Objects   ObjectStore
	Buckets   []string
	Overwrite bool
}

func (s *S3Restore) Name() string { return "s3" }

func (s *S3Restore) Run(ctx context.Context) error {
	for _, bucket := range s.Buckets {
		if err := s.Objects.RestoreBucket(ctx, bucket, s.Overwrite); err != nil {
			return err
		}
	}
	return s.Objects.StopLocal(ctx)
}
