package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/runner"
)

// Admin drives kcadm.sh. The admin session is opened once per process by EnsureConfigured.
type Admin struct {
	Exec       runner.Executor
	Executable string
	ServerUrl  string
	AdminRealm string
	Username   string
	Password   string
	LogPath    string
	// NewBackOff paces the login attempts while the server comes up.
	NewBackOff func() backoff.BackOff

	mu         sync.Mutex
	configured bool
}

func NewAdmin(exec runner.Executor, cfg *model.Config, logName string) *Admin {
	wait := time.Duration(cfg.Keycloak.AdminWaitSeconds) * time.Second
	return &Admin{
		Exec:       exec,
		Executable: filepath.Join(cfg.Keycloak.BinDir, "kcadm.sh"),
		ServerUrl:  cfg.Keycloak.BaseUrl,
		AdminRealm: cfg.Keycloak.AdminRealm,
		Username:   cfg.Keycloak.Username,
		Password:   cfg.Keycloak.Password,
		LogPath:    cfg.LogPath(logName),
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = wait
			return b
		},
	}
}

// EnsureConfigured logs kcadm into the server. It is safe to call redundantly; only the first
// successful call talks to the server.
func (a *Admin) EnsureConfigured(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.configured {
		return nil
	}
	if err := model.RequireAll(
		model.EnvKeycloakBaseUrl, a.ServerUrl,
		model.EnvKeycloakUsername, a.Username,
		model.EnvKeycloakPassword, a.Password,
	); err != nil {
		return err
	}

	inv := runner.Invocation{
		Executable: a.Executable,
		Args: []string{
			"config", "credentials",
			"--server", a.ServerUrl,
			"--realm", a.AdminRealm,
			"--user", a.Username,
			"--password", a.Password,
		},
		LogPath: a.LogPath,
		Secrets: []string{a.Password},
	}

	attempt := 0
	operation := func() error {
		attempt++
		if _, err := a.Exec.Run(ctx, inv); err != nil {
			if ctx.Err() != nil || !model.IsExternalCommandError(err) {
				return backoff.Permanent(err)
			}
			logrus.Warnf("admin login attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}
	b := backoff.WithContext(a.NewBackOff(), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return errors.Wrapf(err, "unable to configure admin session on '%s'", a.ServerUrl)
	}

	a.configured = true
	logrus.Infof("admin session configured on '%s' after %d attempt(s)", a.ServerUrl, attempt)
	return nil
}

// Get runs a kcadm read command and returns its JSON output.
func (a *Admin) Get(ctx context.Context, args ...string) ([]byte, error) {
	if err := a.EnsureConfigured(ctx); err != nil {
		return nil, err
	}
	return a.Exec.Capture(ctx, runner.Invocation{
		Executable: a.Executable,
		Args:       append([]string{"get"}, args...),
		LogPath:    a.LogPath,
	})
}

// Do runs a kcadm write command (create, update, delete). Secrets are masked in logs.
func (a *Admin) Do(ctx context.Context, secrets []string, args ...string) error {
	if err := a.EnsureConfigured(ctx); err != nil {
		return err
	}
	_, err := a.Exec.Run(ctx, runner.Invocation{
		Executable: a.Executable,
		Args:       args,
		LogPath:    a.LogPath,
		Secrets:    secrets,
	})
	return err
}

// RealmId looks up the internal id of the migrated realm.
func (a *Admin) RealmId(ctx context.Context) (string, error) {
	out, err := a.Get(ctx, "realms/"+model.Realm, "--fields", "id")
	if err != nil {
		return "", err
	}
	id, err := lookupString(out, "$.id")
	if err != nil || id == "" {
		return "", model.NewConfigurationError(model.Realm, "realm not found")
	}
	return id, nil
}

// ClientUuid looks up the internal id of a client of the migrated realm.
func (a *Admin) ClientUuid(ctx context.Context, clientId string) (string, error) {
	out, err := a.Get(ctx, "clients", "-r", model.Realm, "-q", "clientId="+clientId, "--fields", "id,clientId")
	if err != nil {
		return "", err
	}
	var clients []interface{}
	if err := json.Unmarshal(out, &clients); err != nil {
		return "", errors.Wrapf(err, "unable to parse clients lookup of '%s'", clientId)
	}
	for _, c := range clients {
		// the query is a substring match on some versions
		found, err := jsonpath.JsonPathLookup(c, "$.clientId")
		if err != nil || found != clientId {
			continue
		}
		id, err := jsonpath.JsonPathLookup(c, "$.id")
		if err == nil {
			if s, ok := id.(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", model.NewConfigurationError(clientId, "client not found")
}

// ServerVersion reads the server version from serverinfo.
func (a *Admin) ServerVersion(ctx context.Context) (string, error) {
	out, err := a.Get(ctx, "serverinfo", "-r", a.AdminRealm)
	if err != nil {
		return "", err
	}
	return lookupString(out, "$.systemInfo.version")
}

func lookupString(data []byte, path string) (string, error) {
	var obj interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", errors.Wrap(err, "unable to parse admin output")
	}
	v, err := jsonpath.JsonPathLookup(obj, path)
	if err != nil {
		return "", errors.Wrapf(err, "'%s' not found in admin output", path)
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v), nil
	}
	return s, nil
}
