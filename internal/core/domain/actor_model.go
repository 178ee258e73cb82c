package domain

import (
	"time"

	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"
)

const (
	ACTOR_ID_MASTER = "master"
	ACTOR_ID_POLLER = "poller"
)

const (
	PollerStateAwaitInverterInfo = "await_inverter_info"
	PollerStateAwaitMeterInfo    = "await_meter_info"
	PollerStateAwaitBatteryInfo  = "await_battery_info"
	PollerStateSteady            = "steady_state"
)

type ActorResponseMixIn struct {
	ResponseError error `json:"-"`
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorHealthRequest struct{}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

type PollerStatusRequest struct{}

type PollerStatusResponse struct {
	ActorResponseMixIn
	State      string                            `json:"state"`
	Inverter   *sunspec_modbus.DeviceIdentity    `json:"inverter,omitempty"`
	Meters     []*sunspec_modbus.DeviceIdentity  `json:"meters,omitempty"`
	Batteries  []*sunspec_modbus.BatteryIdentity `json:"batteries,omitempty"`
	LastCycle  time.Time                         `json:"last_cycle,omitempty"`
	FailedLast []string                          `json:"failed_last_cycle,omitempty"`
}
