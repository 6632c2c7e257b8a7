package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// runMetrics counts what a batch did. It lives on its own registry so a run
// can dump it to a node_exporter textfile without touching global state.
type runMetrics struct {
	reg *prometheus.Registry

	archives     *prometheus.CounterVec
	images       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	bytesWritten prometheus.Counter
}

func newRunMetrics() *runMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &runMetrics{
		reg: reg,
		archives: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrapbook_archives_total",
			Help: "Sources processed, by outcome and error kind.",
		}, []string{"outcome", "kind"}),
		images: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrapbook_images_total",
			Help: "Image references, by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrapbook_archive_duration_seconds",
			Help:    "Wall time per source.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "scrapbook_output_bytes_total",
			Help: "Bytes of documents written.",
		}),
	}
}

func (m *runMetrics) observeSuccess(a *OutputArtifact, seconds float64) {
	outcome := "archived"
	if a.Cached {
		outcome = "cached"
	}
	m.archives.WithLabelValues(outcome, "").Inc()
	m.images.WithLabelValues("downloaded").Add(float64(a.ImagesDownloaded))
	m.images.WithLabelValues("failed").Add(float64(a.ImagesFound - a.ImagesDownloaded))
	if !a.Cached {
		m.duration.WithLabelValues(a.Strategy).Observe(seconds)
	}
}

func (m *runMetrics) observeFailure(err error) {
	m.archives.WithLabelValues("failed", errorKind(err)).Inc()
}

// writeTextfile dumps the registry in the Prometheus text format.
func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
