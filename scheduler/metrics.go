package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sa3tha_followup_pass_runs_total",
		Help: "Follow-up pass executions, by pass and outcome (ok, error, skipped)",
	}, []string{"pass", "outcome"})

	passItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sa3tha_followup_pass_items_total",
		Help: "Items handled by follow-up passes, by pass and result",
	}, []string{"pass", "result"})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sa3tha_followup_pass_duration_seconds",
		Help:    "Wall time of one follow-up pass",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})
)

func observeResult(pass string, res PassResult) {
	passItems.WithLabelValues(pass, "scanned").Add(float64(res.Scanned))
	passItems.WithLabelValues(pass, "dispatched").Add(float64(res.Dispatched))
	passItems.WithLabelValues(pass, "failed").Add(float64(res.Failed))
}
