package service

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"
	"github.com/berfenger/solaredge2influx/internal/core/port"
	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	"go.uber.org/zap"
)

// Poller reads and publishes the register blocks of one inverter and its
// meters and batteries over a single register source. It is not safe for
// concurrent use.
type Poller struct {
	Source    port.RegisterSource
	Publisher *Publisher
	Observer  port.ReadObserver
	Meters    int
	Batteries int
	Logger    *zap.Logger

	inverter       *sunspec_modbus.DeviceIdentity
	meters         []*sunspec_modbus.DeviceIdentity
	batteries      []*sunspec_modbus.BatteryIdentity
	lastStatus     float64
	lastStatusSeen bool
}

// CycleResult lists the sections published in one steady-state cycle and the
// error of every section that was skipped.
type CycleResult struct {
	Published []string
	Failed    map[string]error
}

func (r CycleResult) InverterPublished() bool {
	for _, s := range r.Published {
		if s == domain.DeviceInverter.String() {
			return true
		}
	}
	return false
}

func (r CycleResult) FailedSections() []string {
	var sections []string
	for s := range r.Failed {
		sections = append(sections, s)
	}
	return sections
}

func (p *Poller) Inverter() *sunspec_modbus.DeviceIdentity {
	return p.inverter
}

func (p *Poller) MeterIdentities() []*sunspec_modbus.DeviceIdentity {
	return p.meters
}

func (p *Poller) BatteryIdentities() []*sunspec_modbus.BatteryIdentity {
	return p.batteries
}

func (p *Poller) read(ctx context.Context, section string, address, count uint16) (sunspec_modbus.RawBlock, error) {
	if err := ctx.Err(); err != nil {
		return sunspec_modbus.RawBlock{}, err
	}
	start := time.Now()
	block, err := p.Source.ReadHoldingRegisters(address, count)
	if p.Observer != nil {
		p.Observer.ObserveRead(section, time.Since(start), err)
	}
	return block, err
}

func (p *Poller) IdentifyInverter(ctx context.Context) error {
	ref := domain.DeviceRef{Class: domain.DeviceInverter}
	block, err := p.read(ctx, ref.InfoSection(), sunspec_modbus.InverterInfoAddress, sunspec_modbus.InverterInfoWords)
	if err != nil {
		return fmt.Errorf("identify inverter: %w", err)
	}
	id, err := sunspec_modbus.DecodeCommonIdentity(block)
	if err != nil {
		return fmt.Errorf("identify inverter: %w", err)
	}
	p.inverter = id
	p.Logger.Info("inverter identified", identityFields(ref, id)...)
	return nil
}

// IdentifyMeters reads every configured meter identity. Any failure discards
// the whole sweep.
func (p *Poller) IdentifyMeters(ctx context.Context) error {
	ids := make([]*sunspec_modbus.DeviceIdentity, 0, p.Meters)
	for i := 0; i < p.Meters; i++ {
		ref := domain.DeviceRef{Class: domain.DeviceMeter, Index: i + 1}
		block, err := p.read(ctx, ref.InfoSection(), sunspec_modbus.MeterInfoAddresses[i], sunspec_modbus.MeterInfoWords)
		if err != nil {
			return fmt.Errorf("identify meter %d: %w", ref.Index, err)
		}
		id, err := sunspec_modbus.DecodeCommonIdentity(block)
		if err != nil {
			return fmt.Errorf("identify meter %d: %w", ref.Index, err)
		}
		ids = append(ids, id)
	}
	for i, id := range ids {
		p.Logger.Info("meter identified", identityFields(domain.DeviceRef{Class: domain.DeviceMeter, Index: i + 1}, id)...)
	}
	p.meters = ids
	return nil
}

// IdentifyBatteries reads every configured battery identity. Any failure
// discards the whole sweep.
func (p *Poller) IdentifyBatteries(ctx context.Context) error {
	ids := make([]*sunspec_modbus.BatteryIdentity, 0, p.Batteries)
	for i := 0; i < p.Batteries; i++ {
		ref := domain.DeviceRef{Class: domain.DeviceBattery, Index: i + 1}
		block, err := p.read(ctx, ref.InfoSection(), sunspec_modbus.BatteryInfoAddresses[i], sunspec_modbus.BatteryInfoWords)
		if err != nil {
			return fmt.Errorf("identify battery %d: %w", ref.Index, err)
		}
		id, err := sunspec_modbus.DecodeBatteryIdentity(block)
		if err != nil {
			return fmt.Errorf("identify battery %d: %w", ref.Index, err)
		}
		ids = append(ids, id)
	}
	for i, id := range ids {
		ref := domain.DeviceRef{Class: domain.DeviceBattery, Index: i + 1}
		fields := append(identityFields(ref, &id.DeviceIdentity),
			zap.Float64("rated_energy", id.RatedEnergy),
			zap.Float64("max_charge_continuous_power", id.MaxChargeContinuousPower),
			zap.Float64("max_discharge_continuous_power", id.MaxDischargeContinuousPower),
			zap.Float64("max_charge_peak_power", id.MaxChargePeakPower),
			zap.Float64("max_discharge_peak_power", id.MaxDischargePeakPower))
		p.Logger.Info("battery identified", fields...)
	}
	p.batteries = ids
	return nil
}

// Cycle reads and publishes the inverter, then every identified meter and
// battery. A failed device is skipped; the others are still polled.
func (p *Poller) Cycle(ctx context.Context) CycleResult {
	result := CycleResult{Failed: map[string]error{}}

	p.poll(ctx, &result, domain.DeviceRef{Class: domain.DeviceInverter},
		sunspec_modbus.InverterAddress, sunspec_modbus.InverterWords, sunspec_modbus.InverterModel)
	for i, id := range p.meters {
		ref := domain.DeviceRef{Class: domain.DeviceMeter, Index: i + 1, Label: id.Label()}
		p.poll(ctx, &result, ref, sunspec_modbus.MeterAddresses[i], sunspec_modbus.MeterWords, sunspec_modbus.MeterModel)
	}
	for i, id := range p.batteries {
		ref := domain.DeviceRef{Class: domain.DeviceBattery, Index: i + 1, Label: id.Label()}
		p.poll(ctx, &result, ref, sunspec_modbus.BatteryAddresses[i], sunspec_modbus.BatteryWords, sunspec_modbus.BatteryModel)
	}
	return result
}

func (p *Poller) poll(ctx context.Context, result *CycleResult, ref domain.DeviceRef, address, count uint16, model sunspec_modbus.Model) {
	section := ref.Section()
	block, err := p.read(ctx, section, address, count)
	if err != nil {
		p.Logger.Error("read failed", zap.String("section", section),
			zap.Stringer("kind", sunspec_modbus.FailureKindOf(err)), zap.Error(err))
		result.Failed[section] = err
		return
	}
	reading, err := model.Decode(block)
	if err != nil {
		p.Logger.Error("decode failed", zap.String("section", section), zap.Error(err))
		result.Failed[section] = err
		return
	}
	if ref.Class == domain.DeviceInverter {
		p.logStatus(reading)
	}
	if err := p.Publisher.Publish(ctx, ref, reading); err != nil {
		p.Logger.Error("publish failed", zap.String("section", section), zap.Error(err))
	}
	result.Published = append(result.Published, section)
}

func (p *Poller) logStatus(reading sunspec_modbus.Reading) {
	status, ok := reading.Get("Status")
	if !ok {
		return
	}
	name := sunspec_modbus.InverterStatusToString(uint16(status))
	if !p.lastStatusSeen || status != p.lastStatus {
		p.Logger.Info("inverter status changed", zap.String("status", name))
	} else {
		p.Logger.Debug("inverter status", zap.String("status", name))
	}
	p.lastStatus = status
	p.lastStatusSeen = true
}

func identityFields(ref domain.DeviceRef, id *sunspec_modbus.DeviceIdentity) []zap.Field {
	return []zap.Field{
		zap.String("section", ref.Section()),
		zap.String("manufacturer", id.Manufacturer),
		zap.String("model", id.Model),
		zap.String("option", id.Option),
		zap.String("version", id.Version),
		zap.String("serial", id.Serial),
		zap.Uint16("device_address", id.DeviceAddress),
	}
}
