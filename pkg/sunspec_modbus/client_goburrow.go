package sunspec_modbus

import (
	"encoding/binary"
	"fmt"
	"time"

	gbmodbus "github.com/goburrow/modbus"
	"go.uber.org/zap"
)

// GoburrowClient is a ModbusClient alternative built on goburrow/modbus, for
// gateways that misbehave with the default driver.
type GoburrowClient struct {
	handler    *gbmodbus.TCPClientHandler
	client     gbmodbus.Client
	open       bool
	instrument []ModbusInstrument
}

func CreateGoburrowClient(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) *GoburrowClient {
	handler := gbmodbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", host, port))
	handler.Timeout = timeout
	handler.SlaveId = unitId
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoburrowClient{
		handler:    handler,
		client:     gbmodbus.NewClient(handler),
		instrument: instruments(logger.With(zap.String("target", host), zap.Uint8("unit_id", unitId)), instrumentation),
	}
}

func (c *GoburrowClient) ReadHoldingRegisters(address uint16, count uint16) (RawBlock, error) {
	if !c.open {
		if err := c.handler.Connect(); err != nil {
			return RawBlock{}, &TransportError{Kind: FailureConnect, Address: address, Count: count, Err: err}
		}
		c.open = true
	}

	words, err := c.readRegisters(address, count)
	if err != nil && classifyError(err) == FailureReceive {
		words, err = c.readRegisters(address, count)
	}
	if err != nil {
		_ = c.Close()
		return RawBlock{}, &TransportError{Kind: classifyError(err), Address: address, Count: count, Err: err}
	}
	return RawBlock{Base: address, Words: words}, nil
}

func (c *GoburrowClient) Close() error {
	if !c.open {
		return nil
	}
	c.open = false
	return c.handler.Close()
}

func (c *GoburrowClient) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer RecordTimer("ReadHoldingRegisters", c.instrument)()
	b, err := c.client.ReadHoldingRegisters(addr, quantity)
	if err != nil {
		return nil, err
	}
	if len(b) != int(quantity)*2 {
		return nil, fmt.Errorf("%w: got %d bytes for %d registers", errShortResponse, len(b), quantity)
	}
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return words, nil
}
