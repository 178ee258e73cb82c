package mqtt

import (
	"testing"

	"github.com/berfenger/solaredge2influx/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestReadingStateTopic(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("solaredge/inverter/state", readingStateTopic("solaredge", "inverter", ""))
	assert.Equal("solaredge/meter/2/state", readingStateTopic("solaredge", "meter", "2"))
}

func TestBridgeStateTopic(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("loremtopic/bridge/state", bridgeStateTopic("loremtopic"))
}

func TestOptsFromConfig(t *testing.T) {

	assert := assert.New(t)

	opts := OptsFromConfig(config.MQTTConfig{Host: "broker", Port: 1883, Username: "u", Password: "p", BaseTopic: "solaredge"})
	assert.Len(opts.Servers, 1)
	assert.Equal("tcp://broker:1883", opts.Servers[0].String())
	assert.Equal("u", opts.Username)
	assert.True(opts.WillEnabled)
	assert.True(opts.WillRetained)
	assert.Equal("solaredge/bridge/state", opts.WillTopic)
	assert.Equal([]byte(MQTT_PAYLOAD_OFFLINE), opts.WillPayload)

	opts = OptsFromConfig(config.MQTTConfig{Host: "broker", Port: 1883, Username: "u", BaseTopic: "solaredge"})
	assert.Empty(opts.Username, "credentials need both user and password")
}
