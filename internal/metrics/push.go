package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything in the default registry to a Prometheus pushgateway
// under the given job name. One-shot commands use it since nothing scrapes them.
func Push(url, job string) error {
	return PushFrom(prometheus.DefaultGatherer, url, job)
}

// PushFrom is Push with an explicit gatherer
func PushFrom(g prometheus.Gatherer, url, job string) error {
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
