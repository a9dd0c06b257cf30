package timeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a Prometheus-compatible metrics collector for a Timeline,
// namespaced "timeline_". Attach one via WithMetrics; a Timeline built
// without it records nothing.
type Metrics struct {
	nodeCount        prometheus.Gauge
	currentFrame     prometheus.Gauge
	updatesTotal     prometheus.Counter
	rollbacksTotal   prometheus.Counter
	historyMisses    prometheus.Counter
	userFailures     *prometheus.CounterVec
	retainedFrames   prometheus.Gauge
	propagationDepth prometheus.Histogram
}

// NewMetrics creates and registers a Metrics collector with registry (the
// default registerer if registry is nil).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		nodeCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "timeline",
			Name:      "node_count",
			Help:      "Number of nodes currently in the timeline's dependency graph.",
		}),
		currentFrame: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "timeline",
			Name:      "current_frame",
			Help:      "The timeline's current frame number (0 if time travel is disabled or no external update has occurred yet).",
		}),
		updatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timeline",
			Name:      "updates_total",
			Help:      "Cumulative count of external updates processed (BroadcastEvent.Send / MutableState.Set).",
		}),
		rollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timeline",
			Name:      "rollbacks_total",
			Help:      "Cumulative count of ResetState/RollbackState/NextState navigations that hit a retained frame.",
		}),
		historyMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timeline",
			Name:      "history_misses_total",
			Help:      "Cumulative count of rollback/reset navigations targeting a frame with no retained snapshot.",
		}),
		userFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timeline",
			Name:      "user_failures_total",
			Help:      "Cumulative count of recovered panics from user-supplied recompute/reducer/listener code.",
		}, []string{"label"}),
		retainedFrames: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "timeline",
			Name:      "history_retained_frames",
			Help:      "Number of frame snapshots currently retained for time travel.",
		}),
		propagationDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "timeline",
			Name:      "propagation_depth",
			Help:      "Depth of the child-propagation chain walked by a single updateNodeValue call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
	}
}
