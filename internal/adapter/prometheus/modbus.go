package prometheus

import (
	"time"

	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ModbusMetrics counts register read failures by kind and times every read,
// labelled by section (inverter, meter1_info, ...).
type ModbusMetrics struct {
	connectErrors *prom.CounterVec
	sendErrors    *prom.CounterVec
	recvErrors    *prom.CounterVec
	timeouts      *prom.CounterVec
	latency       *prom.HistogramVec
}

func NewModbusMetrics(registerer prom.Registerer) *ModbusMetrics {
	factory := promauto.With(registerer)
	counter := func(name, help string) *prom.CounterVec {
		return factory.NewCounterVec(prom.CounterOpts{Name: name, Help: help}, []string{"section"})
	}
	return &ModbusMetrics{
		connectErrors: counter("modbus_connect_errors_total", "Modbus connection failures"),
		sendErrors:    counter("modbus_send_errors_total", "Modbus request send failures"),
		recvErrors:    counter("modbus_recv_errors_total", "Modbus response receive failures"),
		timeouts:      counter("modbus_timeouts_total", "Modbus request timeouts"),
		latency: factory.NewHistogramVec(prom.HistogramOpts{
			Name:    "modbus_request_latency_seconds",
			Help:    "Modbus register read latency",
			Buckets: prom.ExponentialBuckets(0.01, 2, 11),
		}, []string{"section"}),
	}
}

func (m *ModbusMetrics) ObserveRead(section string, duration time.Duration, err error) {
	m.latency.WithLabelValues(section).Observe(duration.Seconds())
	if err == nil {
		return
	}
	switch sunspec_modbus.FailureKindOf(err) {
	case sunspec_modbus.FailureConnect:
		m.connectErrors.WithLabelValues(section).Inc()
	case sunspec_modbus.FailureSend:
		m.sendErrors.WithLabelValues(section).Inc()
	case sunspec_modbus.FailureReceive:
		m.recvErrors.WithLabelValues(section).Inc()
	case sunspec_modbus.FailureTimeout:
		m.timeouts.WithLabelValues(section).Inc()
	}
}

// RegisterBuildInfo exposes solaredge_exporter_build_info{version} = 1.
func RegisterBuildInfo(registerer prom.Registerer, version string) {
	promauto.With(registerer).NewGaugeVec(prom.GaugeOpts{
		Name: "solaredge_exporter_build_info",
		Help: "Build information",
	}, []string{"version"}).WithLabelValues(version).Set(1)
}
