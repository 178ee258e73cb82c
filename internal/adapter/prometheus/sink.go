package prometheus

import (
	"errors"
	"fmt"

	"github.com/berfenger/solaredge2influx/internal/core/port"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Sink registers gauges in its own registry, served on /metrics.
type Sink struct {
	registerer prom.Registerer
}

func NewSink(registerer prom.Registerer) *Sink {
	return &Sink{registerer: registerer}
}

type gauge struct {
	vec *prom.GaugeVec
}

func (g gauge) Set(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Set(value)
}

func (s *Sink) Gauge(name, help string, labels ...string) (port.Gauge, error) {
	vec := prom.NewGaugeVec(prom.GaugeOpts{Name: name, Help: help}, labels)
	if err := s.registerer.Register(vec); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prom.GaugeVec); ok {
				return gauge{existing}, nil
			}
		}
		return nil, fmt.Errorf("register gauge %s: %w", name, err)
	}
	return gauge{vec}, nil
}
