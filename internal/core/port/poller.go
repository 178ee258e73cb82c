package port

import (
	"context"
	"time"

	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"
)

// RegisterSource reads blocks of holding registers from a Modbus device.
type RegisterSource interface {
	ReadHoldingRegisters(address uint16, count uint16) (sunspec_modbus.RawBlock, error)
	Close() error
}

// ReadObserver is notified of every register read with its section name.
type ReadObserver interface {
	ObserveRead(section string, duration time.Duration, err error)
}

// TimeSeriesWriter stores one point per call.
type TimeSeriesWriter interface {
	Write(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error
}

type Gauge interface {
	Set(value float64, labelValues ...string)
}

// MetricSink creates named gauges exposed to a scraper.
type MetricSink interface {
	Gauge(name, help string, labels ...string) (Gauge, error)
}
