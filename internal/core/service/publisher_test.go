package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"
	"github.com/berfenger/solaredge2influx/internal/core/port"
	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

func newTestPublisher(sink port.MetricSink, legacy bool, writers ...port.TimeSeriesWriter) *Publisher {
	p := NewPublisher(NewMetricRegistry(sink), writers, legacy, time.Second, zap.NewNop())
	p.Now = func() time.Time { return fixedNow }
	return p
}

func TestMetricName(t *testing.T) {

	meter1 := domain.DeviceRef{Class: domain.DeviceMeter, Index: 1}
	meter2 := domain.DeviceRef{Class: domain.DeviceMeter, Index: 2}
	battery1 := domain.DeviceRef{Class: domain.DeviceBattery, Index: 1}
	inverter := domain.DeviceRef{Class: domain.DeviceInverter}

	tests := []struct {
		name     string
		device   domain.DeviceRef
		field    string
		legacy   bool
		expected string
	}{
		{"legacy first meter", meter1, "M_AC_Power", true, "M_AC_Power"},
		{"first meter", meter1, "M_AC_Power", false, "M1_AC_Power"},
		{"legacy second meter", meter2, "M_AC_Power", true, "M2_AC_Power"},
		{"second meter", meter2, "M_AC_Power", false, "M2_AC_Power"},
		{"battery", battery1, "B_State_of_Energy", false, "B1_State_of_Energy"},
		{"legacy battery", battery1, "B_State_of_Energy", true, "B_State_of_Energy"},
		{"inverter", inverter, "AC_Power", false, "AC_Power"},
		{"foreign prefix", meter2, "AC_Power", false, "AC_Power"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MetricName(tt.device, tt.field, tt.legacy))
		})
	}
}

func TestMeasurement(t *testing.T) {

	assert := assert.New(t)

	m, tags := Measurement(domain.DeviceRef{Class: domain.DeviceInverter})
	assert.Equal("Inverter", m)
	assert.Equal(map[string]string{"device": "inverter"}, tags)

	m, tags = Measurement(domain.DeviceRef{Class: domain.DeviceMeter, Index: 2, Label: "SMA(SN12345)"})
	assert.Equal("SMA(SN12345)", m)
	assert.Equal(map[string]string{"device": "meter", "instance": "2"}, tags)
}

func TestPublishWritesPointAndGauges(t *testing.T) {

	require := require.New(t)
	assert := assert.New(t)

	sink := newRecordingSink()
	writer := &recordingWriter{}
	p := newTestPublisher(sink, false, writer)

	meter := domain.DeviceRef{Class: domain.DeviceMeter, Index: 1, Label: "WattNode(SN10001)"}
	reading := sunspec_modbus.NewReading(
		sunspec_modbus.ReadingField{Name: "M_AC_Power", Value: -1500},
		sunspec_modbus.ReadingField{Name: "M_Exported", Value: 4567890},
	)
	require.NoError(p.Publish(context.Background(), meter, reading))

	points := writer.recorded()
	require.Len(points, 1)
	assert.Equal("WattNode(SN10001)", points[0].measurement)
	assert.Equal(map[string]float64{"M_AC_Power": -1500, "M_Exported": 4567890}, points[0].fields)
	assert.Equal(time.UTC, points[0].ts.Location())
	assert.True(fixedNow.Equal(points[0].ts))

	v, ok := sink.value("M1_AC_Power")
	assert.True(ok)
	assert.Equal(-1500.0, v)
	assert.Equal("M1_AC_Power - WattNode(SN10001)", sink.gauges["M1_AC_Power"].help)
}

func TestPublishCreatesGaugesOnce(t *testing.T) {

	assert := assert.New(t)

	sink := newRecordingSink()
	p := newTestPublisher(sink, true)

	reading := sunspec_modbus.NewReading(
		sunspec_modbus.ReadingField{Name: "AC_Power", Value: 1},
		sunspec_modbus.ReadingField{Name: "AC_Current", Value: 2},
	)
	inverter := domain.DeviceRef{Class: domain.DeviceInverter}
	for range 5 {
		assert.NoError(p.Publish(context.Background(), inverter, reading))
	}
	assert.Equal(2, sink.created)
	assert.Equal(2, p.Registry.Len())
	assert.Equal(5, sink.gauges["AC_Power"].sets)
	assert.Equal("AC_Power", sink.gauges["AC_Power"].help)
}

func TestPublishDropsNonFiniteFromPoint(t *testing.T) {

	assert := assert.New(t)

	sink := newRecordingSink()
	writer := &recordingWriter{}
	p := newTestPublisher(sink, false, writer)

	reading := sunspec_modbus.NewReading(
		sunspec_modbus.ReadingField{Name: "B_Average_Temperature", Value: math.NaN()},
		sunspec_modbus.ReadingField{Name: "B_State_of_Energy", Value: 80},
	)
	battery := domain.DeviceRef{Class: domain.DeviceBattery, Index: 1, Label: "LG(BT00001)"}
	assert.NoError(p.Publish(context.Background(), battery, reading))

	assert.Equal(map[string]float64{"B_State_of_Energy": 80}, writer.recorded()[0].fields)
	v, ok := sink.value("B1_Average_Temperature")
	assert.True(ok)
	assert.True(math.IsNaN(v))
}

func TestPublishSinkErrorsDoNotStopOtherSinks(t *testing.T) {

	assert := assert.New(t)

	sink := newRecordingSink()
	sink.fail["AC_Power"] = true
	broken := &recordingWriter{err: errors.New("connection refused")}
	healthy := &recordingWriter{}
	p := newTestPublisher(sink, false, broken, healthy)

	reading := sunspec_modbus.NewReading(
		sunspec_modbus.ReadingField{Name: "AC_Power", Value: 1},
		sunspec_modbus.ReadingField{Name: "AC_Current", Value: 2},
	)
	err := p.Publish(context.Background(), domain.DeviceRef{Class: domain.DeviceInverter}, reading)
	assert.Error(err)
	assert.ErrorContains(err, "connection refused")
	assert.ErrorContains(err, "gauge AC_Power")

	assert.Len(healthy.recorded(), 1)
	_, ok := sink.value("AC_Current")
	assert.True(ok)
}

func TestPublishWriteTimeout(t *testing.T) {

	assert := assert.New(t)

	slow := &recordingWriter{delay: 300 * time.Millisecond}
	p := newTestPublisher(newRecordingSink(), false, slow)
	p.WriteTimeout = 20 * time.Millisecond

	start := time.Now()
	err := p.Publish(context.Background(), domain.DeviceRef{Class: domain.DeviceInverter},
		sunspec_modbus.NewReading(sunspec_modbus.ReadingField{Name: "AC_Power", Value: 1}))
	assert.Error(err)
	assert.Less(time.Since(start), 250*time.Millisecond)
}

func TestMetricRegistryConcurrentSet(t *testing.T) {

	sink := newRecordingSink()
	registry := NewMetricRegistry(sink)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = registry.Set("AC_Power", "AC_Power", float64(i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sink.created)
	assert.Equal(t, 1, registry.Len())
}
