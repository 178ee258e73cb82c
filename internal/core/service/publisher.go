package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"
	"github.com/berfenger/solaredge2influx/internal/core/port"
	"github.com/berfenger/solaredge2influx/internal/util/taskutil"
	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	"go.uber.org/zap"
)

const InverterMeasurement = "Inverter"

// Publisher sends decoded readings to every time-series writer and mirrors
// them as gauges in the metric registry.
type Publisher struct {
	Registry     *MetricRegistry
	Writers      []port.TimeSeriesWriter
	LegacyNames  bool
	WriteTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

func NewPublisher(registry *MetricRegistry, writers []port.TimeSeriesWriter, legacyNames bool, writeTimeout time.Duration, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		Registry:     registry,
		Writers:      writers,
		LegacyNames:  legacyNames,
		WriteTimeout: writeTimeout,
		Logger:       logger,
		Now:          time.Now,
	}
}

// MetricName numbers meter and battery fields by instance: M_AC_Power of
// meter 2 becomes M2_AC_Power. In legacy mode the first instance keeps the
// plain name.
func MetricName(device domain.DeviceRef, field string, legacy bool) string {
	prefix := device.Class.FieldPrefix()
	if prefix == "" || !strings.HasPrefix(field, prefix) {
		return field
	}
	if legacy && device.Index == 1 {
		return field
	}
	return fmt.Sprintf("%s%d_%s", prefix[:1], device.Index, field[len(prefix):])
}

func MetricHelp(device domain.DeviceRef, name string) string {
	if device.Class == domain.DeviceInverter || device.Label == "" {
		return name
	}
	return name + " - " + device.Label
}

// Measurement returns the time-series measurement and tags of a device.
func Measurement(device domain.DeviceRef) (string, map[string]string) {
	tags := map[string]string{"device": device.Class.String()}
	if device.Class == domain.DeviceInverter {
		return InverterMeasurement, tags
	}
	tags["instance"] = strconv.Itoa(device.Index)
	return device.Label, tags
}

// Publish writes one reading. Every sink is attempted; their errors are joined.
func (p *Publisher) Publish(ctx context.Context, device domain.DeviceRef, reading sunspec_modbus.Reading) error {
	ts := p.Now().UTC()
	var errs []error

	fields := make(map[string]float64, reading.Len())
	for _, f := range reading.Fields() {
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			p.Logger.Debug("publisher: dropping non finite field", zap.String("device", device.Section()), zap.String("field", f.Name))
			continue
		}
		fields[f.Name] = f.Value
	}
	measurement, tags := Measurement(device)
	for _, w := range p.Writers {
		err := taskutil.RunWithTimeout(p.WriteTimeout, func() error {
			wctx := ctx
			if p.WriteTimeout > 0 {
				var cancel context.CancelFunc
				wctx, cancel = context.WithTimeout(ctx, p.WriteTimeout)
				defer cancel()
			}
			return w.Write(wctx, measurement, tags, fields, ts)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", device.Section(), err))
		}
	}

	if p.Registry != nil {
		for _, f := range reading.Fields() {
			name := MetricName(device, f.Name, p.LegacyNames)
			if err := p.Registry.Set(name, MetricHelp(device, name), f.Value); err != nil {
				errs = append(errs, fmt.Errorf("gauge %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
