package cmdutil

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics writes the default registry in Prometheus text format, for
// the node exporter textfile collector. An empty path writes nothing.
func WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
