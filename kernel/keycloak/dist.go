package keycloak

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
)

const (
	BuildLog  = "build.log"
	ExportLog = "export.log"
	ImportLog = "import.log"
	AdminLog  = "kcadm.log"

	UsersPerFile = 100
)

// Distribution drives kc.sh.
type Distribution struct {
	Exec      runner.Executor
	BinDir    string
	ExportDir string
	LogDir    string
	// Optimized passes --optimized to export and import; the image is pre-built.
	Optimized bool
}

func NewDistribution(exec runner.Executor, cfg *model.Config) *Distribution {
	return &Distribution{
		Exec:      exec,
		BinDir:    cfg.Keycloak.BinDir,
		ExportDir: cfg.Keycloak.ExportDir,
		LogDir:    filepath.Dir(cfg.LogPath(BuildLog)),
		Optimized: cfg.Keycloak.Optimized,
	}
}

func (d *Distribution) Build(ctx context.Context) error {
	return d.run(ctx, BuildLog, "build")
}

func (d *Distribution) Export(ctx context.Context) error {
	args := []string{
		"export",
		"--dir", d.ExportDir,
		"--realm", model.Realm,
		"--users", "different_files",
		"--users-per-file", strconv.Itoa(UsersPerFile),
	}
	return d.run(ctx, ExportLog, d.optimized(args)...)
}

// Import overwrites existing entities with the content of the export dir.
func (d *Distribution) Import(ctx context.Context) error {
	args := []string{
		"import",
		"--dir", d.ExportDir,
		"--override", "true",
	}
	return d.run(ctx, ImportLog, d.optimized(args)...)
}

// CleanExport removes the realm and user files of a previous export and returns the removed
// paths.
func (d *Distribution) CleanExport() ([]string, error) {
	var removed []string
	for _, pattern := range []string{model.Realm + "-realm.json", model.Realm + "-users-*.json"} {
		matches, err := filepath.Glob(filepath.Join(d.ExportDir, pattern))
		if err != nil {
			return removed, errors.Wrapf(err, "invalid pattern '%s'", pattern)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return removed, errors.Wrapf(err, "unable to remove '%s'", m)
			}
			logrus.Debugf("removed '%s'", m)
			removed = append(removed, m)
		}
	}
	return removed, nil
}

func (d *Distribution) optimized(args []string) []string {
	if d.Optimized {
		return append(args, "--optimized")
	}
	return args
}

func (d *Distribution) run(ctx context.Context, logName string, args ...string) error {
	_, err := d.Exec.Run(ctx, runner.Invocation{
		Executable: filepath.Join(d.BinDir, "kc.sh"),
		Args:       args,
		LogPath:    filepath.Join(d.LogDir, logName),
	})
	return err
}
