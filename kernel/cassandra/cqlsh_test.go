package cassandra

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
	"github.com/youwol/datamanager/kernel/runner/runnertest"
)

const ddl = "CREATE KEYSPACE assets WITH replication = {'class': 'SimpleStrategy'};\n\nCREATE TABLE assets.entities (id text PRIMARY KEY);\n"

func cql(inv runner.Invocation) string {
	for i, a := range inv.Args {
		if a == "-e" && i+1 < len(inv.Args) {
			return inv.Args[i+1]
		}
	}
	return ""
}

func newCqlsh(respond func(inv runner.Invocation, statement string) runnertest.Response) (*Cqlsh, *runnertest.Recorder) {
	rec := runnertest.NewRecorder(nil)
	rec.Respond = func(inv runner.Invocation) runnertest.Response {
		statement := cql(inv)
		if statement == "" {
			// statement sent on stdin; the recorder drained it into the last call
			calls := rec.Calls()
			statement = calls[len(calls)-1].Input
		}
		return respond(inv, statement)
	}
	return &Cqlsh{Exec: rec, Command: []string{"cqlsh", "--request-timeout=3600"}, Host: "scylla"}, rec
}

func countOutput(n int) string {
	return "Consistency level set to ALL.\n\n count\n-------\n " + strconv.Itoa(n) + "\n\n(1 rows)\n"
}

func TestCqlsh_BackupDDL(t *testing.T) {
	c, rec := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		return runnertest.Response{Stdout: "Consistency level set to ALL.\n" + ddl}
	})
	path := filepath.Join(t.TempDir(), "assets.cql")

	require.NoError(t, c.BackupDDL(context.Background(), "assets", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ddl, string(data))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "cqlsh", calls[0].Executable)
	assert.Equal(t, []string{"--request-timeout=3600", "scylla"}, calls[0].Args)
	assert.Equal(t, "CONSISTENCY ALL; DESCRIBE assets;", calls[0].Input)
}

func TestCqlsh_RestoreDDL_ToleratesIdxToken(t *testing.T) {
	c, rec := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		if strings.Contains(statement, "DESCRIBE") {
			return runnertest.Response{Stdout: "Consistency level set to ALL.\n" + ddl}
		}
		return runnertest.Response{ExitCode: 2, Stderr: "<stdin>:12:" + IdxTokenMessage + "\n<stdin>:14:" + IdxTokenMessage + "\n"}
	})
	path := filepath.Join(t.TempDir(), "assets.cql")
	require.NoError(t, os.WriteFile(path, []byte(ddl), 0644))

	require.NoError(t, c.RestoreDDL(context.Background(), "assets", path, true))
	assert.True(t, strings.HasPrefix(rec.Calls()[0].Input, "CONSISTENCY ALL;DROP KEYSPACE IF EXISTS assets;\n"))
}

func TestCqlsh_RestoreDDL_OtherFailure(t *testing.T) {
	c, _ := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		return runnertest.Response{ExitCode: 2, Stderr: IdxTokenMessage + "\nSyntaxException: line 1\n"}
	})
	path := filepath.Join(t.TempDir(), "assets.cql")
	require.NoError(t, os.WriteFile(path, []byte(ddl), 0644))

	err := c.RestoreDDL(context.Background(), "assets", path, false)
	require.Error(t, err)
	assert.True(t, model.IsExternalCommandError(err))
}

func TestCqlsh_RestoreDDL_UnprefixedIdxToken(t *testing.T) {
	c, _ := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		return runnertest.Response{ExitCode: 2, Stderr: IdxTokenMessage + "\n"}
	})
	path := filepath.Join(t.TempDir(), "assets.cql")
	require.NoError(t, os.WriteFile(path, []byte(ddl), 0644))

	err := c.RestoreDDL(context.Background(), "assets", path, false)
	require.Error(t, err)
	assert.True(t, model.IsExternalCommandError(err))
}

func TestCqlsh_RestoreDDL_Mismatch(t *testing.T) {
	c, _ := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		if strings.Contains(statement, "DESCRIBE") {
			return runnertest.Response{Stdout: "Consistency level set to ALL.\nCREATE KEYSPACE other;\n"}
		}
		return runnertest.Response{}
	})
	path := filepath.Join(t.TempDir(), "assets.cql")
	require.NoError(t, os.WriteFile(path, []byte(ddl), 0644))

	err := c.RestoreDDL(context.Background(), "assets", path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not correctly restored")
}

func TestCqlsh_BackupTable(t *testing.T) {
	c, _ := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		if strings.Contains(statement, "count(*)") {
			return runnertest.Response{Stdout: countOutput(2)}
		}
		return runnertest.Response{Stdout: "Consistency level set to ALL.\na,1\nb,2\n"}
	})
	path := filepath.Join(t.TempDir(), "assets.entities.csv")

	require.NoError(t, c.BackupTable(context.Background(), "assets.entities", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,1\nb,2\n", string(data))
}

func TestCqlsh_BackupTable_WrongCount(t *testing.T) {
	c, _ := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		if strings.Contains(statement, "count(*)") {
			return runnertest.Response{Stdout: countOutput(3)}
		}
		return runnertest.Response{Stdout: "Consistency level set to ALL.\na,1\nb,2\n"}
	})

	err := c.BackupTable(context.Background(), "assets.entities", filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong count")
}

func TestCqlsh_RestoreTable(t *testing.T) {
	c, rec := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		if strings.Contains(statement, "count(*)") {
			return runnertest.Response{Stdout: countOutput(2)}
		}
		return runnertest.Response{}
	})
	path := filepath.Join(t.TempDir(), "assets.entities.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,1\nb,2\n"), 0644))

	require.NoError(t, c.RestoreTable(context.Background(), "assets.entities", path, true))

	load := rec.Calls()[0]
	assert.True(t, load.HasArgs("-e", "CONSISTENCY ALL; TRUNCATE assets.entities; COPY assets.entities FROM STDIN;"))
	assert.Equal(t, "a,1\nb,2\n", load.Input)
}

func TestCqlsh_CountTable(t *testing.T) {
	c, _ := newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		return runnertest.Response{Stdout: countOutput(7)}
	})
	n, err := c.CountTable(context.Background(), "assets.entities")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	c, _ = newCqlsh(func(_ runner.Invocation, statement string) runnertest.Response {
		return runnertest.Response{Stdout: "Consistency level set to ALL.\n"}
	})
	_, err = c.CountTable(context.Background(), "assets.entities")
	assert.Error(t, err)
}

func TestCqlsh_NoCommand(t *testing.T) {
	c := &Cqlsh{Exec: runnertest.NewRecorder(nil)}
	_, err := c.ShowHost(context.Background())
	assert.True(t, model.IsConfigurationError(err))
}
