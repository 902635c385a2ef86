// Package telemetry exports training progress as Prometheus metrics.
//
// The trainer reports events through the Recorder interface. NopRecorder
// discards them; PrometheusRecorder turns them into counters and gauges:
//
//	born_train_mode_transitions_total{from="training",to="evaluating"}
//	born_train_optimizer_steps_total{forced="false"}
//	born_train_loss{phase="train"}
//	born_train_epochs_completed_total
//	born_train_checkpoints_written_total
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "born_train"

// Recorder receives training events.
type Recorder interface {
	ModeTransition(from, to string)
	OptimizerStep(forced bool)
	ObserveLoss(phase string, loss float64)
	EpochCompleted(epoch int)
	CheckpointWritten()
}

// NopRecorder ignores all events.
type NopRecorder struct{}

func (NopRecorder) ModeTransition(string, string) {}
func (NopRecorder) OptimizerStep(bool) {}
func (NopRecorder) ObserveLoss(string, float64) {}
func (NopRecorder) EpochCompleted(int) {}
func (NopRecorder) CheckpointWritten() {}

// PrometheusRecorder records events into Prometheus collectors.
type PrometheusRecorder struct {
	transitions *prometheus.CounterVec
	steps       *prometheus.CounterVec
	loss        *prometheus.GaugeVec
	epochs      prometheus.Counter
	lastEpoch   prometheus.Gauge
	checkpoints prometheus.Counter
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_transitions_total",
			Help:      "Model mode transitions.",
		}, []string{"from", "to"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_steps_total",
			Help:      "Optimizer steps, split by whether the flush was forced at epoch end.",
		}, []string{"forced"}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loss",
			Help:      "Most recent loss per phase.",
		}, []string{"phase"}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_completed_total",
			Help:      "Completed epochs.",
		}),
		lastEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_epoch",
			Help:      "Index of the last completed epoch.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_written_total",
			Help:      "Checkpoints written.",
		}),
	}

	for _, c := range []prometheus.Collector{r.transitions, r.steps, r.loss, r.epochs, r.lastEpoch, r.checkpoints} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ModeTransition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

func (r *PrometheusRecorder) OptimizerStep(forced bool) {
	r.steps.WithLabelValues(strconv.FormatBool(forced)).Inc()
}

func (r *PrometheusRecorder) ObserveLoss(phase string, loss float64) {
	r.loss.WithLabelValues(phase).Set(loss)
}

func (r *PrometheusRecorder) EpochCompleted(epoch int) {
	r.epochs.Inc()
	r.lastEpoch.Set(float64(epoch))
}

func (r *PrometheusRecorder) CheckpointWritten() {
	r.checkpoints.Inc()
}
