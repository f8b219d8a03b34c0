package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ranktrack/ranktrack/internal/progress"
)

// PrometheusSink exports scheduler progress metrics. It owns all collectors
// for unit lifecycle and per-keyword check outcomes.
type PrometheusSink struct {
	unitsClaimed   prometheus.Counter
	unitsYielded   prometheus.Counter
	unitsCompleted *prometheus.CounterVec
	keywordChecks  *prometheus.CounterVec
	checkDuration  prometheus.Histogram
	changesSent    prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		unitsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ranktrack_units_claimed_total",
			Help: "Total processing units claimed by an invocation.",
		}),
		unitsYielded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ranktrack_units_yielded_total",
			Help: "Units returned unfinished because the time budget ran out.",
		}),
		unitsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ranktrack_units_finished_total",
			Help: "Units that reached a terminal state, partitioned by result.",
		}, []string{"result"}),
		keywordChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ranktrack_keyword_checks_total",
			Help: "Keyword checks partitioned by outcome.",
		}, []string{"outcome"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ranktrack_keyword_check_duration_seconds",
			Help:    "Wall time per keyword check including pagination delays.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		changesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ranktrack_significant_changes_total",
			Help: "Significant ranking changes handed to the notifier.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.unitsClaimed,
		s.unitsYielded,
		s.unitsCompleted,
		s.keywordChecks,
		s.checkDuration,
		s.changesSent,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageUnitClaimed:
		s.unitsClaimed.Inc()
	case progress.StageUnitYielded:
		s.unitsYielded.Inc()
	case progress.StageUnitCompleted:
		s.unitsCompleted.WithLabelValues("completed").Inc()
	case progress.StageUnitFailed:
		s.unitsCompleted.WithLabelValues("failed").Inc()
	case progress.StageKeywordChecked:
		outcome := "not_found"
		if evt.Found {
			outcome = "found"
		}
		s.keywordChecks.WithLabelValues(outcome).Inc()
		if evt.Dur > 0 {
			s.checkDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageKeywordError:
		s.keywordChecks.WithLabelValues("error").Inc()
	case progress.StageKeywordSkipped:
		s.keywordChecks.WithLabelValues("skipped").Inc()
	case progress.StageChangesNotified:
		s.changesSent.Add(float64(evt.Count))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
