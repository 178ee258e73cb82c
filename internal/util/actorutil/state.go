package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates switches behaviors and remembers the name of the active one.
type ActorWithStates struct {
	Behavior actor.Behavior
	current  string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.current = state.Name()
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) StateName() string {
	return s.current
}
