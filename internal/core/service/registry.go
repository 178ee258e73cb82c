package service

import (
	"sync"

	"github.com/berfenger/solaredge2influx/internal/core/port"
)

// MetricRegistry creates each gauge once, on first use, and caches it by name.
type MetricRegistry struct {
	sink   port.MetricSink
	mu     sync.Mutex
	gauges map[string]port.Gauge
}

func NewMetricRegistry(sink port.MetricSink) *MetricRegistry {
	return &MetricRegistry{
		sink:   sink,
		gauges: make(map[string]port.Gauge),
	}
}

// Set updates the gauge for name. help is only used when the gauge is created.
func (r *MetricRegistry) Set(name, help string, value float64) error {
	g, err := r.gauge(name, help)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

func (r *MetricRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gauges)
}

func (r *MetricRegistry) gauge(name, help string) (port.Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g, nil
	}
	g, err := r.sink.Gauge(name, help)
	if err != nil {
		return nil, err
	}
	r.gauges[name] = g
	return g, nil
}
