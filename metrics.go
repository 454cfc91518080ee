package geodata

import "github.com/prometheus/client_golang/prometheus"

// buildMetrics holds the counters of one generator. Each generator has its
// own registry so concurrent generators (and tests) do not share state.
type buildMetrics struct {
	registry *prometheus.Registry

	filesConverted prometheus.Counter
	filesFailed    prometheus.Counter
	filesIgnored   prometheus.Counter
	linesSkipped   *prometheus.CounterVec
	records        prometheus.Counter
	cacheHits      prometheus.Counter
	archiveBytes   prometheus.Counter
	runDuration    prometheus.Gauge
}

func newBuildMetrics() *buildMetrics {
	m := &buildMetrics{
		registry: prometheus.NewRegistry(),
		filesConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodata_files_converted_total",
			Help: "Input files converted and stored in the archive",
		}),
		filesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodata_files_failed_total",
			Help: "Input files skipped because conversion or archiving failed",
		}),
		filesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodata_files_ignored_total",
			Help: "Input files ignored because of their name",
		}),
		linesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geodata_lines_skipped_total",
			Help: "Malformed input lines left out of the tables",
		}, []string{"reason"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodata_records_total",
			Help: "Prefix lines stored in tables",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodata_cache_hits_total",
			Help: "Tables taken from the build cache",
		}),
		archiveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodata_archive_bytes_total",
			Help: "Size of the generated archive",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geodata_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
	}
	m.registry.MustRegister(
		m.filesConverted,
		m.filesFailed,
		m.filesIgnored,
		m.linesSkipped,
		m.records,
		m.cacheHits,
		m.archiveBytes,
		m.runDuration,
	)
	return m
}

// observe records the line statistics of a stored conversion.
func (m *buildMetrics) observe(c conversion) {
	if c.cached {
		m.cacheHits.Inc()
		return
	}
	m.records.Add(float64(c.stats.Records))
	m.linesSkipped.WithLabelValues("missing_separator").Add(float64(c.stats.MissingSep))
	m.linesSkipped.WithLabelValues("missing_location").Add(float64(c.stats.MissingLocation))
	m.linesSkipped.WithLabelValues("location_too_long").Add(float64(c.stats.LongLocation))
	m.linesSkipped.WithLabelValues("bad_prefix").Add(float64(c.stats.BadPrefix))
}

// writeTextfile writes the metrics in the Prometheus text format, for the
// node exporter textfile collector.
func (m *buildMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
