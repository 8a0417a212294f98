package cassandra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
)

const LogName = "cqlsh.log"

// IdxTokenMessage is reported by Scylla for materialized views over idx_token; the view is
// recreated by the server and the failure is harmless.
const IdxTokenMessage = `InvalidRequest: Error from server: code=2200 [Invalid query] message="Unknown column name detected in CREATE MATERIALIZED VIEW statement: idx_token"`

// Cqlsh runs CQL statements through the cqlsh shell, always at consistency ALL.
type Cqlsh struct {
	Exec    runner.Executor
	Command []string
	Host    string
	LogPath string
}

func NewCqlsh(exec runner.Executor, cfg *model.Config, logPath string) *Cqlsh {
	return &Cqlsh{
		Exec:    exec,
		Command: strings.Fields(cfg.Cql.Command),
		Host:    cfg.Cql.Host,
		LogPath: logPath,
	}
}

func (c *Cqlsh) ShowHost(ctx context.Context) (string, error) {
	out, err := c.statement(ctx, "SHOW HOST;")
	return strings.TrimSpace(out), err
}

func (c *Cqlsh) ShowVersion(ctx context.Context) (string, error) {
	out, err := c.statement(ctx, "SHOW VERSION;")
	return strings.TrimSpace(out), err
}

// BackupDDL writes the schema of keyspace to path.
func (c *Cqlsh) BackupDDL(ctx context.Context, keyspace, path string) error {
	ddl, err := c.describe(ctx, keyspace)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(ddl), 0644); err != nil {
		return errors.Wrapf(err, "unable to write ddl of '%s'", keyspace)
	}
	return nil
}

// RestoreDDL runs the schema script at path, optionally dropping the keyspace first, then
// checks that every statement of the described keyspace is part of the script.
func (c *Cqlsh) RestoreDDL(ctx context.Context, keyspace, path string, drop bool) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to read ddl of '%s'", keyspace)
	}
	preamble := "CONSISTENCY ALL;"
	if drop {
		preamble = fmt.Sprintf("CONSISTENCY ALL;DROP KEYSPACE IF EXISTS %s;", keyspace)
	}

	result, err := c.run(ctx, preamble+"\n"+string(script), nil)
	if err != nil {
		if result == nil || result.ExitCode != 2 || !onlyIdxTokenFailures(result.Stderr) {
			return errors.Wrapf(err, "unable to restore ddl of '%s': %s", keyspace, stderr(result))
		}
		logrus.Warnf("ignoring %d failure(s) '%s'", len(nonEmptyLines(string(result.Stderr))), IdxTokenMessage)
	}

	described, err := c.describe(ctx, keyspace)
	if err != nil {
		return err
	}
	if diff := blocksMissing(described, string(script)); len(diff) > 0 {
		return errors.Errorf("keyspace '%s' not correctly restored, diff are %q", keyspace, diff)
	}
	return nil
}

// BackupTable writes the table as CSV to path and checks the row count.
func (c *Cqlsh) BackupTable(ctx context.Context, table, path string) error {
	total, err := c.CountTable(ctx, table)
	if err != nil {
		return err
	}
	result, err := c.run(ctx, fmt.Sprintf("CONSISTENCY ALL; COPY %s TO STDOUT;", table), []byte{})
	if err != nil {
		return errors.Wrapf(err, "unable to copy table '%s': %s", table, stderr(result))
	}

	// first line is the CONSISTENCY output
	lines := strings.SplitAfter(string(result.Stdout), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return errors.Errorf("no output when copying table '%s'", table)
	}
	if len(lines)-1 != total {
		return errors.Errorf("wrong count of rows in '%s': expected %d, got %d", table, total, len(lines)-1)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines[1:], "")), 0644); err != nil {
		return errors.Wrapf(err, "unable to write data of '%s'", table)
	}
	logrus.Infof("copied %d row(s) of '%s'", total, table)
	return nil
}

// RestoreTable loads the CSV at path into table, optionally truncating first, and checks the
// row count.
func (c *Cqlsh) RestoreTable(ctx context.Context, table, path string, truncate bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to read data of '%s'", table)
	}
	total := len(nonEmptyLines(string(data)))

	preamble := "CONSISTENCY ALL;"
	if truncate {
		preamble = fmt.Sprintf("CONSISTENCY ALL; TRUNCATE %s;", table)
	}
	result, err := c.run(ctx, fmt.Sprintf("%s COPY %s FROM STDIN;", preamble, table), data)
	if err != nil {
		return errors.Wrapf(err, "unable to load table '%s': %s", table, stderr(result))
	}

	actual, err := c.CountTable(ctx, table)
	if err != nil {
		return err
	}
	if actual != total {
		return errors.Errorf("expected %d row(s) in '%s', actual is %d", total, table, actual)
	}
	return nil
}

// CountTable reads the count from the fifth line of the SELECT output.
func (c *Cqlsh) CountTable(ctx context.Context, table string) (int, error) {
	out, err := c.statement(ctx, fmt.Sprintf("CONSISTENCY ALL;SELECT count(*) FROM %s;", table))
	if err != nil {
		return 0, err
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 5 {
		return 0, errors.Errorf("unexpected count output for '%s': %q", table, out)
	}
	count, err := strconv.Atoi(strings.TrimSpace(lines[4]))
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected count output for '%s'", table)
	}
	return count, nil
}

func (c *Cqlsh) describe(ctx context.Context, keyspace string) (string, error) {
	out, err := c.statement(ctx, fmt.Sprintf("CONSISTENCY ALL; DESCRIBE %s;", keyspace))
	if err != nil {
		return "", err
	}
	if i := strings.Index(out, "\n"); i >= 0 {
		return out[i+1:], nil
	}
	return "", nil
}

func (c *Cqlsh) statement(ctx context.Context, cql string) (string, error) {
	result, err := c.run(ctx, cql, nil)
	if err != nil {
		return "", errors.Wrapf(err, "cql '%s' failed: %s", cql, stderr(result))
	}
	return string(result.Stdout), nil
}

// run passes cql on stdin, or with -e when stdin carries data.
func (c *Cqlsh) run(ctx context.Context, cql string, stdin []byte) (*runner.Result, error) {
	if len(c.Command) == 0 {
		return nil, model.NewConfigurationError(model.EnvCqlshCommand, "not set or empty")
	}
	args := append([]string{}, c.Command[1:]...)
	if c.Host != "" {
		args = append(args, c.Host)
	}
	input := []byte(cql)
	if stdin != nil {
		args = append(args, "-e", cql)
		input = stdin
	}
	return c.Exec.Exec(ctx, runner.Invocation{
		Executable: c.Command[0],
		Args:       args,
		LogPath:    c.LogPath,
		Stdin:      bytes.NewReader(input),
	})
}

// cqlsh prefixes each failure with its input position, so a bare message
// at column 0 does not count.
func onlyIdxTokenFailures(stderr []byte) bool {
	for _, line := range nonEmptyLines(string(stderr)) {
		if strings.Index(line, IdxTokenMessage) <= 0 {
			return false
		}
	}
	return true
}

// blocksMissing lists the statements of described absent from script. Statements are
// separated by blank lines.
func blocksMissing(described, script string) []string {
	known := make(map[string]bool)
	for _, b := range strings.Split(script, "\n\n") {
		known[b] = true
	}
	var missing []string
	for _, b := range strings.Split(described, "\n\n") {
		if !known[b] {
			missing = append(missing, b)
		}
	}
	return missing
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func stderr(result *runner.Result) string {
	if result == nil {
		return ""
	}
	return strings.TrimSpace(string(result.Stderr))
}
