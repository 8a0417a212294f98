// Package readiness waits for the sidecar containers a task depends on.
package readiness

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/store"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 300 * time.Second
)

// ErrPhaseError reports a status file that ended in ERROR while being awaited.
var ErrPhaseError = errors.New("status file is ERROR, see the keycloak container logs")

type Probe interface {
	Name() string
	// Ready reports false while the container is still starting. An error is logged and
	// counts as not ready.
	Ready(ctx context.Context) (bool, error)
}

// KeycloakProbe is ready once the kc container moved its status file past SETUP.
type KeycloakProbe struct {
	Status store.PhaseStore
}

func (p KeycloakProbe) Name() string { return "keycloak" }

func (p KeycloakProbe) Ready(context.Context) (bool, error) {
	phase, err := p.Status.Phase()
	if err != nil {
		return false, err
	}
	return phase != model.PhaseSetup, nil
}

// HttpProbe is ready when Url answers 200.
type HttpProbe struct {
	Label  string
	Url    string
	Client *http.Client
}

func (p HttpProbe) Name() string { return p.Label }

func (p HttpProbe) Ready(ctx context.Context) (bool, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Url, nil)
	if err != nil {
		return false, errors.Wrapf(err, "invalid url '%s'", p.Url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "GET %s failed", p.Url)
	}
	_ = resp.Body.Close()
	logrus.Debugf("GET %s responded %d", p.Url, resp.StatusCode)
	return resp.StatusCode == http.StatusOK, nil
}

type Waiter struct {
	Probes   []Probe
	Interval time.Duration
	Timeout  time.Duration
}

func NewWaiter(probes ...Probe) *Waiter {
	return &Waiter{Probes: probes, Interval: DefaultInterval, Timeout: DefaultTimeout}
}

// Wait polls every probe concurrently until all are ready, the timeout elapses or ctx is
// cancelled.
func (w *Waiter) Wait(ctx context.Context) error {
	if len(w.Probes) == 0 {
		return nil
	}
	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(errors.Wrap(model.ErrInterrupted, "waiting for containers"))
		}
		return w.probeAll(ctx)
	}, backoff.WithContext(constantPolicy(w.Interval, w.Timeout), ctx))
	if err == nil {
		logrus.Info("all containers ready")
		return nil
	}
	if errors.Is(err, model.ErrInterrupted) || ctx.Err() != nil {
		return errors.Wrap(model.ErrInterrupted, "waiting for containers")
	}
	return errors.Wrapf(err, "probing failed after %s", w.Timeout)
}

func (w *Waiter) probeAll(ctx context.Context) error {
	ready := make([]bool, len(w.Probes))
	var g errgroup.Group
	for i, probe := range w.Probes {
		g.Go(func() error {
			ok, err := probe.Ready(ctx)
			if err != nil {
				logrus.Infof("probe '%s' failed: %v", probe.Name(), err)
			}
			ready[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	var pending []string
	for i, ok := range ready {
		if !ok {
			pending = append(pending, w.Probes[i].Name())
		}
	}
	if len(pending) > 0 {
		return errors.Errorf("containers not ready: %v", pending)
	}
	return nil
}

// AwaitPhase polls status every interval until it reads target. ERROR fails at once and read
// errors count as not there yet. A zero timeout waits until ctx is cancelled.
func AwaitPhase(ctx context.Context, status store.PhaseStore, target model.Phase, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	var last model.Phase
	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(errors.Wrapf(model.ErrInterrupted, "waiting for status '%s'", target))
		}
		phase, err := status.Phase()
		if err != nil {
			logrus.Debugf("unable to read status: %v", err)
			return err
		}
		if phase != last {
			logrus.Infof("new status '%s'", phase)
			last = phase
		}
		switch phase {
		case target:
			return nil
		case model.PhaseError:
			return backoff.Permanent(ErrPhaseError)
		}
		return errors.Errorf("status is still '%s'", phase)
	}, backoff.WithContext(constantPolicy(interval, timeout), ctx))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPhaseError):
		return err
	case errors.Is(err, model.ErrInterrupted) || ctx.Err() != nil:
		return errors.Wrapf(model.ErrInterrupted, "waiting for status '%s'", target)
	}
	return errors.Wrapf(err, "status '%s' not reached after %s", target, timeout)
}

func constantPolicy(interval, timeout time.Duration) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = interval
	policy.MaxInterval = interval
	policy.Multiplier = 1
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = timeout
	policy.Reset()
	return policy
}
