// Package telemetry exposes process-wide analysis counters.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stackreview/internal/patch"
)

var (
	// analysisFiles counts files seen across all analyzed patches
	analysisFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_files_total",
		Help: "Total files touched by analyzed patches",
	})

	// analysisLines counts modified lines across all analyzed patches
	analysisLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_lines_total",
		Help: "Total modified lines in analyzed patches",
	})
)

// Compile-time interface verification.
var _ patch.Stats = (*Recorder)(nil)

// Recorder feeds patch-analysis telemetry into Prometheus counters.
type Recorder struct{}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveFiles records the number of files in an analyzed patch.
func (r *Recorder) ObserveFiles(n int) {
	analysisFiles.Add(float64(n))
}

// ObserveLines records the number of modified lines in an analyzed patch.
func (r *Recorder) ObserveLines(n int) {
	analysisLines.Add(float64(n))
}
