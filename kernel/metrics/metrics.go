package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

const Measurement = "datamanager_phase"

const (
	OutcomeOk    = "ok"
	OutcomeError = "error"
)

// Observer receives the duration of every completed phase.
type Observer interface {
	PhaseCompleted(ctx context.Context, workflow string, phase model.Phase, outcome string, d time.Duration)
	Close()
}

// New returns an InfluxDB observer when a URL is configured, a no-op one otherwise.
func New(cfg model.MetricsConfig) Observer {
	if cfg.InfluxUrl == "" {
		return Noop{}
	}
	return NewInflux(cfg)
}

type Noop struct{}

func (Noop) PhaseCompleted(context.Context, string, model.Phase, string, time.Duration) {}

func (Noop) Close() {}

type Influx struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func NewInflux(cfg model.MetricsConfig) *Influx {
	client := influxdb2.NewClient(cfg.InfluxUrl, cfg.InfluxToken)
	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
	}
}

// PhaseCompleted never fails the run; write errors are logged.
func (i *Influx) PhaseCompleted(ctx context.Context, workflow string, phase model.Phase, outcome string, d time.Duration) {
	point := influxdb2.NewPoint(Measurement,
		map[string]string{
			"workflow": workflow,
			"phase":    phase.String(),
			"outcome":  outcome,
		},
		map[string]interface{}{
			"duration_ms": d.Milliseconds(),
		},
		time.Now(),
	)
	// the run context may already be cancelled when the failing phase is reported
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := i.writer.WritePoint(writeCtx, point); err != nil {
		logrus.Warnf("unable to write metrics for phase '%s': %v", phase, err)
	}
}

func (i *Influx) Close() {
	i.client.Close()
}
