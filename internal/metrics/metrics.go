package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsageCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extractor_usage_commits_total",
		Help: "Usage log commits recorded against pool keys.",
	}, []string{"success"})

	QuotaExceededSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_quota_exceeded_total",
		Help: "Commits that pushed a key past its daily limit.",
	})

	SelectorExhaustions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extractor_selector_exhausted_total",
		Help: "Selections that found no key with remaining quota.",
	})
)
