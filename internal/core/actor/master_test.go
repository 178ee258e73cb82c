package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"
	"github.com/berfenger/solaredge2influx/internal/core/port"
	"github.com/berfenger/solaredge2influx/internal/core/service"
	"github.com/berfenger/solaredge2influx/internal/util"
	"github.com/berfenger/solaredge2influx/internal/util/actorutil"
	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testGauge struct {
	mu    sync.Mutex
	value float64
}

func (g *testGauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
}

type testSink struct {
	mu     sync.Mutex
	gauges map[string]*testGauge
}

func (s *testSink) Gauge(name, help string, labels ...string) (port.Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &testGauge{}
	s.gauges[name] = g
	return g, nil
}

func (s *testSink) value(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gauges[name]
	if !ok {
		return 0, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value, true
}

type masterFixture struct {
	system *actor.ActorSystem
	pid    *actor.PID
	source *sunspec_modbus.TestRegisterSource
	sink   *testSink
	fatal  chan error
}

// startMaster polls meters and batteries devices, which must match what source serves.
func startMaster(t *testing.T, source *sunspec_modbus.TestRegisterSource, meters, batteries int, retry service.RetryPolicy) *masterFixture {
	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	f := &masterFixture{
		system: actorutil.NewActorSystemWithZapLogger(logger),
		source: source,
		sink:   &testSink{gauges: map[string]*testGauge{}},
		fatal:  make(chan error, 1),
	}
	registry := service.NewMetricRegistry(f.sink)
	publisher := service.NewPublisher(registry, nil, cfg.MonitorConfig.LegacySupport, time.Second, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(func() *PollerActor {
			poller := &service.Poller{
				Source:    source,
				Publisher: publisher,
				Meters:    meters,
				Batteries: batteries,
			}
			return NewPollerActor(poller, 50*time.Millisecond, retry, func(err error) {
				select {
				case f.fatal <- err:
				default:
				}
			}, logger)
		}, logger)
	})
	pid, err := f.system.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	f.pid = pid

	t.Cleanup(func() {
		f.system.Root.Stop(pid)
		f.system.Shutdown()
	})
	return f
}

func (f *masterFixture) health(t *testing.T) domain.ActorHealthResponse {
	res, err := f.system.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	return resp
}

func (f *masterFixture) healthy() bool {
	res, err := f.system.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	if err != nil {
		return false
	}
	resp, ok := res.(domain.ActorHealthResponse)
	return ok && resp.Healthy
}

func TestMasterActor(t *testing.T) {

	source := sunspec_modbus.NewTestSolarEdgeSource(1, 1)
	f := startMaster(t, source, 1, 1, service.RetryPolicy{Interval: 50 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return f.healthy()
	}, 5*time.Second, 50*time.Millisecond, "healthy once polling")

	healthResp := f.health(t)
	assert.Equal(t, domain.PollerStateSteady, healthResp.State)

	v, ok := f.sink.value("M1_AC_Power")
	assert.True(t, ok)
	assert.Equal(t, -1500.0, v)
	v, ok = f.sink.value("B1_State_of_Energy")
	assert.True(t, ok)
	assert.Equal(t, 80.0, v)

	res, err := f.system.Root.RequestFuture(f.pid, domain.PollerStatusRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	status, ok := res.(domain.PollerStatusResponse)
	require.True(t, ok)
	assert.Equal(t, "SolarEdge(7E0F1234)", status.Inverter.Label())
	assert.Len(t, status.Meters, 1)
	assert.Len(t, status.Batteries, 1)
	assert.False(t, status.LastCycle.IsZero())
}

func TestMasterActorWaitsForInverter(t *testing.T) {

	source := sunspec_modbus.NewTestSolarEdgeSource(0, 0)
	source.FailAlways(sunspec_modbus.InverterInfoAddress, &sunspec_modbus.TransportError{
		Kind: sunspec_modbus.FailureConnect,
		Err:  errors.New("connection refused"),
	})
	f := startMaster(t, source, 0, 0, service.RetryPolicy{Interval: 50 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return source.ReadCount(sunspec_modbus.InverterInfoAddress) >= 3
	}, 5*time.Second, 20*time.Millisecond, "identification retried")

	healthResp := f.health(t)
	assert.False(t, healthResp.Healthy)
	assert.Equal(t, domain.PollerStateAwaitInverterInfo, healthResp.State)
	assert.Zero(t, source.ReadCount(sunspec_modbus.InverterAddress), "no telemetry before identification")

	source.Recover(sunspec_modbus.InverterInfoAddress)
	assert.Eventually(t, func() bool {
		return f.healthy()
	}, 5*time.Second, 50*time.Millisecond)
	assert.Zero(t, source.ReadCount(sunspec_modbus.MeterInfoAddresses[0]), "meter stage skipped")
	assert.Zero(t, source.ReadCount(sunspec_modbus.BatteryInfoAddresses[0]), "battery stage skipped")
}

func TestMasterActorRetriesExhausted(t *testing.T) {

	source := sunspec_modbus.NewTestSolarEdgeSource(0, 0)
	source.FailAlways(sunspec_modbus.InverterInfoAddress, errors.New("timeout"))
	f := startMaster(t, source, 0, 0, service.RetryPolicy{Interval: 20 * time.Millisecond, MaxRetries: 2})

	select {
	case err := <-f.fatal:
		assert.ErrorIs(t, err, service.ErrRetriesExhausted)
	case <-time.After(5 * time.Second):
		t.Fatal("retry policy did not give up")
	}
	assert.Equal(t, 3, source.ReadCount(sunspec_modbus.InverterInfoAddress))
}

func TestMasterActorSteadyStateSurvivesDeviceFailure(t *testing.T) {

	source := sunspec_modbus.NewTestSolarEdgeSource(1, 1)
	source.FailAlways(sunspec_modbus.MeterAddresses[0], errors.New("timeout"))
	f := startMaster(t, source, 1, 1, service.RetryPolicy{Interval: 50 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return source.ReadCount(sunspec_modbus.BatteryAddresses[0]) >= 2
	}, 5*time.Second, 20*time.Millisecond, "battery still polled")

	assert.True(t, f.health(t).Healthy)
	_, ok := f.sink.value("M1_AC_Power")
	assert.False(t, ok)
}

// messageContext delivers a single message; any other context call panics.
type messageContext struct {
	actor.Context
	msg any
}

func (c messageContext) Message() any {
	return c.msg
}

func TestMasterActorPollerTermination(t *testing.T) {

	pollerPID := actor.NewPID("nonhost", domain.ACTOR_ID_MASTER+"/"+domain.ACTOR_ID_POLLER)
	newMaster := func() *MasterActor {
		m := NewMasterActor(nil, zap.NewNop())
		m.pollerActor = pollerPID
		m.behavior.Become(m.DefaultReceive)
		return m
	}

	stopping := newMaster()
	stopping.Receive(messageContext{msg: &actor.Stopping{}})
	assert.NotPanics(t, func() {
		stopping.Receive(messageContext{msg: &actor.Terminated{Who: pollerPID}})
	}, "orderly stop")

	running := newMaster()
	assert.Panics(t, func() {
		running.Receive(messageContext{msg: &actor.Terminated{Who: pollerPID}})
	}, "unexpected poller loss")
}
