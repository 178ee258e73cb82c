package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"
	"github.com/berfenger/solaredge2influx/internal/core/service"
	. "github.com/berfenger/solaredge2influx/internal/util/actorutil"
	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// PollerActor drives a service.Poller through device identification and
// then polls every interval. Each stage waits on a scheduled tick.
type PollerActor struct {
	ActorWithStates
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	poller   *service.Poller
	interval time.Duration
	retry    service.RetryPolicy
	backoff  backoff.BackOff
	onFatal  func(error)

	runCtx     context.Context
	cancelRun  context.CancelFunc
	lastCycle  time.Time
	lastResult service.CycleResult

	logger *zap.Logger
}

type pollTick struct{}

type pollerState struct {
	name    string
	receive actor.ReceiveFunc
}

func (s pollerState) Name() string {
	return s.name
}

func (s pollerState) Receive(ctx actor.Context) {
	s.receive(ctx)
}

// NewPollerActor creates the poller. onFatal is called once when a bounded
// retry policy gives up on identification.
func NewPollerActor(poller *service.Poller, interval time.Duration, retry service.RetryPolicy, onFatal func(error), logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		poller:   poller,
		interval: interval,
		retry:    retry,
		onFatal:  onFatal,
		logger:   ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
	if act.poller.Logger == nil {
		act.poller.Logger = act.logger
	}
	act.Behavior = actor.NewBehavior()
	act.Become(act.awaitInverterInfo())
	return act
}

func (state *PollerActor) awaitInverterInfo() pollerState {
	return pollerState{domain.PollerStateAwaitInverterInfo, state.AwaitInverterInfoReceive}
}

func (state *PollerActor) awaitMeterInfo() pollerState {
	return pollerState{domain.PollerStateAwaitMeterInfo, state.AwaitMeterInfoReceive}
}

func (state *PollerActor) awaitBatteryInfo() pollerState {
	return pollerState{domain.PollerStateAwaitBatteryInfo, state.AwaitBatteryInfoReceive}
}

func (state *PollerActor) steady() pollerState {
	return pollerState{domain.PollerStateSteady, state.SteadyStateReceive}
}

func (state *PollerActor) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug(fmt.Sprintf("poller@%s started", state.StateName()))
		state.runCtx, state.cancelRun = context.WithCancel(context.Background())
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.backoff = state.retry.NewBackOff()
		ctx.Send(ctx.Self(), pollTick{})
	case *actor.Stopping, *actor.Restarting:
		state.logger.Debug(fmt.Sprintf("poller@%s stopping", state.StateName()))
		state.shutdown()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: state.StateName() == domain.PollerStateSteady && state.lastResult.InverterPublished(),
			State:   state.StateName(),
		})
	case domain.PollerStatusRequest:
		ctx.Respond(domain.PollerStatusResponse{
			State:      state.StateName(),
			Inverter:   state.poller.Inverter(),
			Meters:     state.poller.MeterIdentities(),
			Batteries:  state.poller.BatteryIdentities(),
			LastCycle:  state.lastCycle,
			FailedLast: state.lastResult.FailedSections(),
		})
	default:
		state.Behavior.Receive(ctx)
	}
}

func (state *PollerActor) AwaitInverterInfoReceive(ctx actor.Context) {
	if _, ok := ctx.Message().(pollTick); !ok {
		return
	}
	if err := state.poller.IdentifyInverter(state.runCtx); err != nil {
		state.retryLater(ctx, err)
		return
	}
	state.advance(ctx, state.awaitMeterInfo())
}

func (state *PollerActor) AwaitMeterInfoReceive(ctx actor.Context) {
	if _, ok := ctx.Message().(pollTick); !ok {
		return
	}
	if state.poller.Meters == 0 {
		state.logger.Debug("poller@await_meter_info no meters configured")
	} else if err := state.poller.IdentifyMeters(state.runCtx); err != nil {
		state.retryLater(ctx, err)
		return
	}
	state.advance(ctx, state.awaitBatteryInfo())
}

func (state *PollerActor) AwaitBatteryInfoReceive(ctx actor.Context) {
	if _, ok := ctx.Message().(pollTick); !ok {
		return
	}
	if state.poller.Batteries == 0 {
		state.logger.Debug("poller@await_battery_info no batteries configured")
	} else if err := state.poller.IdentifyBatteries(state.runCtx); err != nil {
		state.retryLater(ctx, err)
		return
	}
	state.advance(ctx, state.steady())
	state.logger.Info("poller@steady_state polling", zap.Duration("interval", state.interval))
}

func (state *PollerActor) SteadyStateReceive(ctx actor.Context) {
	if _, ok := ctx.Message().(pollTick); !ok {
		return
	}
	result := state.poller.Cycle(state.runCtx)
	state.lastCycle = time.Now()
	state.lastResult = result
	state.logger.Debug("poller@steady_state cycle done",
		zap.Strings("published", result.Published), zap.Int("failed", len(result.Failed)))
	state.scheduleTick(ctx, state.interval)
}

func (state *PollerActor) advance(ctx actor.Context, next pollerState) {
	state.backoff.Reset()
	state.Become(next)
	ctx.Send(ctx.Self(), pollTick{})
}

func (state *PollerActor) retryLater(ctx actor.Context, err error) {
	delay := state.backoff.NextBackOff()
	if delay == backoff.Stop {
		err = fmt.Errorf("%w: %w", service.ErrRetriesExhausted, err)
		state.logger.Error(fmt.Sprintf("poller@%s giving up", state.StateName()), zap.Error(err))
		if state.onFatal != nil {
			state.onFatal(err)
		}
		return
	}
	state.logger.Error(fmt.Sprintf("poller@%s identification failed", state.StateName()),
		zap.Stringer("kind", sunspec_modbus.FailureKindOf(err)), zap.Duration("retry_in", delay), zap.Error(err))
	state.scheduleTick(ctx, delay)
}

func (state *PollerActor) scheduleTick(ctx actor.Context, delay time.Duration) {
	if state.runCtx.Err() != nil {
		return
	}
	state.cancelTick = state.scheduler.RequestOnce(delay, ctx.Self(), pollTick{})
}

func (state *PollerActor) shutdown() {
	if state.cancelTick != nil {
		state.cancelTick()
	}
	if state.cancelRun != nil {
		state.cancelRun()
	}
	if err := state.poller.Source.Close(); err != nil {
		state.logger.Warn("poller close error", zap.Error(err))
	}
}
