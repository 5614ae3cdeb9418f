// Package metrics holds the prometheus collectors of a batch run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BatchMetrics struct {
	InputsProcessed   prometheus.Counter
	InputFailures     *prometheus.CounterVec
	TruncatedInputs   prometheus.Counter
	MetadataStripped  prometheus.Counter
	JumpDestsDropped  prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	InstructionCounts prometheus.Histogram
	ActiveWorkers     prometheus.Gauge
}

func NewBatchMetrics() BatchMetrics {
	return BatchMetrics{
		InputsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evmnorm_inputs_processed_total",
			Help: "Total number of bytecode inputs analyzed successfully",
		}),
		InputFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evmnorm_input_failures_total",
			Help: "Total number of inputs rejected, by reason",
		}, []string{"reason"}),
		TruncatedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evmnorm_truncated_inputs_total",
			Help: "Total number of inputs ending in an incomplete PUSH operand",
		}),
		MetadataStripped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evmnorm_metadata_stripped_bytes_total",
			Help: "Total bytes of compiler metadata removed during normalization",
		}),
		JumpDestsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evmnorm_jumpdests_dropped_total",
			Help: "Total number of unreferenced JUMPDEST instructions removed",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evmnorm_cache_lookups_total",
			Help: "Total number of result cache lookups, by outcome",
		}, []string{"result"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evmnorm_analysis_duration_seconds",
			Help:    "Time taken to normalize and extract features from one input in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		InstructionCounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evmnorm_instructions",
			Help:    "Normalized instruction count per input",
			Buckets: prometheus.ExponentialBuckets(16, 4, 7),
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evmnorm_active_workers",
			Help: "Current number of batch workers analyzing an input",
		}),
	}
}

// Register adds every collector of m to reg.
func Register(reg prometheus.Registerer, m BatchMetrics) error {
	for _, c := range []prometheus.Collector{
		m.InputsProcessed, m.InputFailures, m.TruncatedInputs, m.MetadataStripped, m.JumpDestsDropped,
		m.CacheLookups, m.AnalysisDuration, m.InstructionCounts, m.ActiveWorkers,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

// Observe records one finished analysis.
func (m BatchMetrics) Observe(d time.Duration, instructions int, truncated bool, stripped, dropped int) {
	m.InputsProcessed.Inc()
	m.AnalysisDuration.Observe(d.Seconds())
	m.InstructionCounts.Observe(float64(instructions))
	m.MetadataStripped.Add(float64(stripped))
	m.JumpDestsDropped.Add(float64(dropped))
	if truncated {
		m.TruncatedInputs.Inc()
	}
}

// WriteTextfile writes the metrics gathered from g to path in the text
// exposition format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
