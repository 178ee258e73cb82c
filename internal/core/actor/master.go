package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"
	. "github.com/berfenger/solaredge2influx/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const childRequestTimeout = 2 * time.Second

type PollerActorProvider func() *PollerActor

// MasterActor supervises the poller and answers health and status requests
// on its behalf.
type MasterActor struct {
	behavior actor.Behavior

	pollerActor         *actor.PID
	pollerActorProvider PollerActorProvider
	stopping            bool
	logger              *zap.Logger
}

func NewMasterActor(pollerActorProvider PollerActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		behavior:            actor.NewBehavior(),
		pollerActorProvider: pollerActorProvider,
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	switch context.Message().(type) {
	case *actor.Stopping, *actor.Restarting:
		state.stopping = true
	}
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		pollerPID, err := state.startPollerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.pollerActor = pollerPID

		state.behavior.Become(state.DefaultReceive)
	default:
		state.logger.Debug("master@starting ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		future := ctx.RequestFuture(state.pollerActor, domain.ActorHealthRequest{}, childRequestTimeout)
		RespondAfter(ctx, future, func(err error) any {
			return domain.ActorHealthResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				Id:                 domain.ACTOR_ID_POLLER,
				Healthy:            false,
			}
		})
	case domain.PollerStatusRequest:
		state.logger.Debug("master@default PollerStatusRequest")
		future := ctx.RequestFuture(state.pollerActor, msg, childRequestTimeout)
		RespondAfter(ctx, future, func(err error) any {
			return domain.PollerStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
	case *actor.Terminated:
		if msg.Who.Id == state.pollerActor.Id {
			if state.stopping {
				state.logger.Debug("master@default poller stopped")
				return
			}
			state.logger.Error("master@default poller terminated")
			panic(errors.New("poller terminated"))
		}
	}
}

func (state *MasterActor) startPollerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return state.pollerActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(pollerProps, domain.ACTOR_ID_POLLER)
}
