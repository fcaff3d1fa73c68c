package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"parcel-dispatch/internal/metrics"
)

// provideMetrics creates a private registry so containers built in tests never collide.
func provideMetrics() (*prometheus.Registry, *metrics.Set, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, fmt.Errorf("register process collector: %w", err)
	}
	set := metrics.NewSet()
	if err := set.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("register service metrics: %w", err)
	}
	return reg, set, nil
}
