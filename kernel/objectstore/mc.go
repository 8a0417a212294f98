package objectstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
)

const LogName = "mc.log"

// Mc drives the minio client binary in JSON mode against two aliases: the local minio
// server and the cluster S3 service.
type Mc struct {
	Exec      runner.Executor
	Path      string
	ConfigDir string
	Local     Instance
	Cluster   Instance
	LogPath   string
	Usage     UsageReader
	// VerifyDelay separates the two attempts at verifying a mirror.
	VerifyDelay time.Duration

	mu      sync.Mutex
	aliases bool
}

func NewMc(exec runner.Executor, cfg *model.Config, usage UsageReader) *Mc {
	return &Mc{
		Exec:        exec,
		Path:        cfg.Minio.ClientPath,
		ConfigDir:   cfg.Minio.ConfigDir,
		Local:       LocalInstance(cfg.Minio),
		Cluster:     ClusterInstance(cfg.S3),
		LogPath:     cfg.LogPath(LogName),
		Usage:       usage,
		VerifyDelay: 5 * time.Second,
	}
}

// Instances maps each alias to its server.
func (m *Mc) Instances() map[string]Instance {
	return map[string]Instance{AliasLocal: m.Local, AliasCluster: m.Cluster}
}

// ClusterInfo returns the 'info' document of 'mc admin info' for the cluster.
func (m *Mc) ClusterInfo(ctx context.Context) (map[string]interface{}, error) {
	if err := m.ensureAliases(ctx); err != nil {
		return nil, err
	}
	var info map[string]interface{}
	err := m.command(ctx, func(doc map[string]interface{}) {
		if v, ok := doc["info"].(map[string]interface{}); ok {
			info = v
		}
	}, nil, "admin", "info", AliasCluster)
	return info, err
}

// BackupBucket mirrors a cluster bucket into the local server.
func (m *Mc) BackupBucket(ctx context.Context, bucket string) error {
	if err := m.ensureAliases(ctx); err != nil {
		return err
	}
	if err := m.command(ctx, nil, nil, "mb", "--ignore-existing", AliasLocal+"/"+bucket); err != nil {
		return err
	}
	return m.mirror(ctx, AliasCluster, AliasLocal, bucket)
}

// RestoreBucket mirrors a local bucket into the cluster, removing the cluster bucket first
// when asked.
func (m *Mc) RestoreBucket(ctx context.Context, bucket string, removeExisting bool) error {
	if err := m.ensureAliases(ctx); err != nil {
		return err
	}
	target := AliasCluster + "/" + bucket
	if removeExisting {
		if err := m.command(ctx, nil, nil, "rb", "--force", target); err != nil {
			return err
		}
	}
	if err := m.command(ctx, nil, nil, "mb", target); err != nil {
		return err
	}
	return m.mirror(ctx, AliasLocal, AliasCluster, bucket)
}

func (m *Mc) StopLocal(ctx context.Context) error {
	if err := m.ensureAliases(ctx); err != nil {
		return err
	}
	return m.command(ctx, nil, nil, "admin", "service", "stop", AliasLocal)
}

func (m *Mc) ClusterUsage(ctx context.Context, bucket string) (Usage, error) {
	return m.Usage.Usage(ctx, AliasCluster, bucket)
}

func (m *Mc) mirror(ctx context.Context, sourceAlias, targetAlias, bucket string) error {
	source := sourceAlias + "/" + bucket
	target := targetAlias + "/" + bucket

	expected, err := m.Usage.Usage(ctx, sourceAlias, bucket)
	if err != nil {
		return err
	}
	logrus.Infof("source bucket '%s': %s", source, expected)

	var transferred float64
	err = m.command(ctx, func(doc map[string]interface{}) {
		if count, ok := doc["totalCount"].(float64); ok {
			transferred = count
		}
	}, nil, "mirror", "--overwrite", "--preserve", "--remove", source, target)
	if err != nil {
		return err
	}
	logrus.Infof("mirrored '%s' to '%s' (%d objects transferred)", source, target, int64(transferred))

	actual, err := m.Usage.Usage(ctx, targetAlias, bucket)
	if err != nil {
		return err
	}
	if actual == expected {
		return nil
	}

	logrus.Warnf("target bucket '%s' is %s, expected %s; checking again", target, actual, expected)
	select {
	case <-ctx.Done():
		return errors.Wrapf(model.ErrInterrupted, "verifying '%s'", target)
	case <-time.After(m.VerifyDelay):
	}
	if actual, err = m.Usage.Usage(ctx, targetAlias, bucket); err != nil {
		return err
	}
	if actual != expected {
		return errors.Errorf("mirror %s to %s failed: expected %s, actual %s", source, target, expected, actual)
	}
	return nil
}

func (m *Mc) ensureAliases(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aliases {
		return nil
	}
	if err := model.RequireAll(model.EnvMinioClient, m.Path, model.EnvMinioClientConfig, m.ConfigDir); err != nil {
		return err
	}
	for _, alias := range []string{AliasLocal, AliasCluster} {
		instance := m.Instances()[alias]
		if err := instance.Validate(alias); err != nil {
			return err
		}
		if err := m.command(ctx, nil, []string{instance.SecretKey},
			"alias", "set", alias, instance.BaseUrl(), instance.AccessKey, instance.SecretKey); err != nil {
			return errors.Wrapf(err, "unable to set alias '%s'", alias)
		}
	}
	m.aliases = true
	return nil
}

// command runs mc and checks the status of every JSON line of its output.
func (m *Mc) command(ctx context.Context, onSuccess func(doc map[string]interface{}), secrets []string, args ...string) error {
	inv := runner.Invocation{
		Executable: m.Path,
		Args:       append([]string{"--json", "--config-dir", m.ConfigDir}, args...),
		LogPath:    m.LogPath,
		Secrets:    secrets,
	}
	result, runErr := m.Exec.Exec(ctx, inv)
	if result != nil {
		if err := parseStatus(result.Stdout, onSuccess); err != nil {
			return errors.Wrapf(err, "mc %s", args[0])
		}
	}
	if runErr != nil {
		return errors.Wrapf(runErr, "mc %s", args[0])
	}
	return nil
}

func parseStatus(output []byte, onSuccess func(doc map[string]interface{})) error {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		doc := make(map[string]interface{})
		if err := json.Unmarshal(line, &doc); err != nil {
			return errors.Wrapf(err, "unparsable output line %q", line)
		}
		switch doc["status"] {
		case "success":
			if onSuccess != nil {
				onSuccess(doc)
			}
		case "error":
			return errors.Errorf("failure when running mc command: %s", errorMessage(doc["error"]))
		default:
			return errors.Errorf("unknown status in output line %q", line)
		}
	}
	return errors.Wrap(scanner.Err(), "unable to read output")
}

func errorMessage(v interface{}) string {
	if doc, ok := v.(map[string]interface{}); ok {
		if msg, ok := doc["message"].(string); ok {
			return msg
		}
	}
	data, _ := json.Marshal(v)
	return string(data)
}
