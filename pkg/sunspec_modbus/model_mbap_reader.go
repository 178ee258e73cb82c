package sunspec_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// ModbusClient reads holding registers over Modbus/TCP. The connection is
// opened on first use and dropped after any failed read. It is owned by a
// single poller and is not safe for concurrent use.
type ModbusClient struct {
	client     *modbus.ModbusClient
	open       bool
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func CreateModbusClient(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (*ModbusClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err = client.SetUnitId(unitId); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ModbusClient{
		client:     client,
		instrument: instruments(logger.With(zap.String("target", host), zap.Uint8("unit_id", unitId)), instrumentation),
	}, nil
}

func (c *ModbusClient) ReadHoldingRegisters(address uint16, count uint16) (RawBlock, error) {
	if !c.open {
		if err := c.client.Open(); err != nil {
			return RawBlock{}, &TransportError{Kind: FailureConnect, Address: address, Count: count, Err: err}
		}
		c.open = true
	}

	words, err := c.readRegisters(address, count)
	if err != nil && classifyError(err) == FailureReceive {
		// a late or garbled frame is retried once on the same socket
		words, err = c.readRegisters(address, count)
	}
	if err != nil {
		_ = c.Close()
		return RawBlock{}, &TransportError{Kind: classifyError(err), Address: address, Count: count, Err: err}
	}
	return RawBlock{Base: address, Words: words}, nil
}

func (c *ModbusClient) Close() error {
	if !c.open {
		return nil
	}
	c.open = false
	return c.client.Close()
}

func (c *ModbusClient) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", c.instrument)()
	return c.client.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	if logger == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

func instruments(logger *zap.Logger, extra *ModbusInstrument) []ModbusInstrument {
	var inst []ModbusInstrument
	if logInst := traceLoggerInstrumentation(logger); logInst != nil {
		inst = append(inst, *logInst)
	}
	if extra != nil {
		inst = append(inst, *extra)
	}
	return inst
}
