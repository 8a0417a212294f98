package engine

import (
	"context"
	"sync"
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/keycloak"
	"github.com/youwol/datamanager/kernel/metrics"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/store"
)

// Run carries what a workflow needs. Phase transitions go through Enter so the status file
// always names the last phase started.
type Run struct {
	Config   *model.Config
	Store    store.PhaseStore
	Dist     *keycloak.Distribution
	Admin    *keycloak.Admin
	Observer metrics.Observer

	workflow   string
	mu         sync.Mutex
	phase      model.Phase
	phaseStart time.Time
}

// Enter writes phase to the status store. Entering a phase completes the previous one.
func (r *Run) Enter(ctx context.Context, phase model.Phase) error {
	if ctx.Err() != nil {
		return errors.Wrapf(model.ErrInterrupted, "not entering %s", phase)
	}
	if err := r.Store.SetPhase(phase); err != nil {
		return err
	}

	r.mu.Lock()
	previous, start := r.phase, r.phaseStart
	r.phase, r.phaseStart = phase, time.Now()
	r.mu.Unlock()

	if previous != "" {
		r.observer().PhaseCompleted(ctx, r.workflow, previous, metrics.OutcomeOk, time.Since(start))
	}
	r.Log().WithField("phase", phase).Info("entering phase")
	return nil
}

// Phase is the last phase entered.
func (r *Run) Phase() model.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Run) Log() *logrus.Entry {
	return pfxlog.ContextLogger(r.workflow).WithField("workflow", r.workflow)
}

func (r *Run) observer() metrics.Observer {
	if r.Observer == nil {
		return metrics.Noop{}
	}
	return r.Observer
}

// Orchestrator runs one workflow and owns the terminal status.
type Orchestrator struct {
	Run *Run
}

func NewOrchestrator(run *Run) *Orchestrator {
	return &Orchestrator{Run: run}
}

// Execute runs w and writes the terminal status: DONE when w succeeds, ERROR on any failure.
// The returned error is nil iff DONE was written.
func (o *Orchestrator) Execute(ctx context.Context, w Workflow) (err error) {
	r := o.Run
	r.mu.Lock()
	r.workflow, r.phase = w.Name(), ""
	r.mu.Unlock()
	log := r.Log()
	log.Info("starting")

	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic in workflow '%s': %v", w.Name(), p)
		}
		if err == nil && ctx.Err() != nil {
			err = errors.Wrap(model.ErrInterrupted, "signal received")
		}
		if err == nil {
			err = o.finish(ctx, model.PhaseDone, metrics.OutcomeOk)
			if err == nil {
				log.Info("done")
				return
			}
		}
		log.WithField("phase", r.Phase()).WithError(err).Error("failed")
		if statusErr := o.finish(ctx, model.PhaseError, metrics.OutcomeError); statusErr != nil {
			log.WithError(statusErr).Error("unable to write ERROR status")
		}
	}()

	return w.Execute(ctx, r)
}

func (o *Orchestrator) finish(ctx context.Context, phase model.Phase, outcome string) error {
	r := o.Run
	r.mu.Lock()
	previous, start := r.phase, r.phaseStart
	r.mu.Unlock()

	if previous != "" && previous != phase {
		r.observer().PhaseCompleted(ctx, r.workflow, previous, outcome, time.Since(start))
	}
	if err := r.Store.SetPhase(phase); err != nil {
		if phase == model.PhaseDone && errors.Is(err, model.ErrTerminalPhase) {
			// the signal guard already wrote ERROR
			return model.ErrInterrupted
		}
		return err
	}

	r.mu.Lock()
	r.phase = phase
	r.mu.Unlock()
	return nil
}
