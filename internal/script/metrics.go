package script

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ovpnadmin",
		Name:      "script_invocations_total",
		Help:      "Management script invocations by subcommand and outcome.",
	}, []string{"subcommand", "outcome"})
	metricDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ovpnadmin",
		Name:      "script_duration_seconds",
		Help:      "Wall time of management script invocations.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"subcommand"})
)

// subcommand keys metrics by the first two positional arguments, e.g. "client add".
// Later arguments carry client names and must not become label values.
func subcommand(args []string) string {
	switch len(args) {
	case 0:
		return "none"
	case 1:
		return args[0]
	default:
		return args[0] + " " + args[1]
	}
}

func observeInvocation(args []string, ok bool, d time.Duration) {
	sub := subcommand(args)
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	metricInvocations.WithLabelValues(sub, outcome).Inc()
	metricDuration.WithLabelValues(sub).Observe(d.Seconds())
}
