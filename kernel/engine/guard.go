package engine

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/store"
)

// TerminationSignals abort a run.
var TerminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT, syscall.SIGQUIT}

// Guard turns termination signals into a cancelled run. When the run does not wind down
// within Grace, the guard writes ERROR itself and exits.
type Guard struct {
	Store store.PhaseStore
	Grace time.Duration
	Exit  func(code int)

	signals  chan os.Signal
	finished chan struct{}
	once     sync.Once
}

func NewGuard(s store.PhaseStore, grace time.Duration) *Guard {
	return &Guard{
		Store:    s,
		Grace:    grace,
		Exit:     os.Exit,
		signals:  make(chan os.Signal, len(TerminationSignals)),
		finished: make(chan struct{}),
	}
}

// Watch installs the handlers and returns the run context. Stop must be called once the run
// has written its terminal status.
func (g *Guard) Watch(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	signal.Notify(g.signals, TerminationSignals...)

	go func() {
		defer cancel()
		select {
		case sig := <-g.signals:
			logrus.Errorf("received signal '%v', aborting", sig)
			cancel()
			g.await()
		case <-g.finished:
		}
	}()
	return ctx
}

func (g *Guard) await() {
	timer := time.NewTimer(g.Grace)
	defer timer.Stop()
	select {
	case <-g.finished:
	case <-timer.C:
		logrus.Errorf("run did not stop within %v, forcing ERROR", g.Grace)
		if err := g.Store.SetPhase(model.PhaseError); err != nil {
			logrus.WithError(err).Error("unable to write ERROR status")
		}
		g.Exit(1)
	}
}

func (g *Guard) Stop() {
	g.once.Do(func() {
		signal.Stop(g.signals)
		close(g.finished)
	})
}
