package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func validConfig() Config {
	return Config{
		InverterModbusTcp: InverterModbusTCPConfig{Host: "192.168.1.10", Port: 502, UnitId: 1, Driver: DriverSimonvetter},
		MonitorConfig:     MonitorConfig{PollIntervalSeconds: 5, Meters: 1},
		Influx:            InfluxConfig{Enable: true, URL: "http://localhost:8086", Database: "solaredge"},
		MQTT:              MQTTConfig{BaseTopic: "SolarEdge"},
		Port:              2112,
	}
}

func TestValidate(t *testing.T) {

	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing host", func(c *Config) { c.InverterModbusTcp.Host = "" }, false},
		{"unit id", func(c *Config) { c.InverterModbusTcp.UnitId = 248 }, false},
		{"unknown driver", func(c *Config) { c.InverterModbusTcp.Driver = "rtu" }, false},
		{"goburrow driver", func(c *Config) { c.InverterModbusTcp.Driver = DriverGoburrow }, true},
		{"too many meters", func(c *Config) { c.MonitorConfig.Meters = 4 }, false},
		{"three meters", func(c *Config) { c.MonitorConfig.Meters = 3 }, true},
		{"too many batteries", func(c *Config) { c.MonitorConfig.Batteries = 3 }, false},
		{"zero interval", func(c *Config) { c.MonitorConfig.PollIntervalSeconds = 0 }, false},
		{"influx without url", func(c *Config) { c.Influx.URL = "" }, false},
		{"invalid topic", func(c *Config) { c.MQTT.Enable = true; c.MQTT.BaseTopic = "solar/edge" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateNormalizesTopic(t *testing.T) {

	cfg := validConfig()
	cfg.MQTT.Enable = true
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "solaredge", cfg.MQTT.BaseTopic)
}

func TestInfluxTarget(t *testing.T) {

	assert := assert.New(t)

	cfg := InfluxConfig{Database: "solaredge"}
	assert.Equal("solaredge", cfg.Bucket())
	assert.Equal("", cfg.AuthToken())

	cfg.RetentionPolicy = "autogen"
	cfg.Username = "user"
	cfg.Password = "pass"
	assert.Equal("solaredge/autogen", cfg.Bucket())
	assert.Equal("user:pass", cfg.AuthToken())

	cfg.Token = "secret"
	assert.Equal("secret", cfg.AuthToken())
}

func TestMQTTPublishTimeout(t *testing.T) {

	assert := assert.New(t)

	cfg := MQTTConfig{}
	assert.Equal(DefaultMQTTPublishTimeout, cfg.PublishTimeout())

	cfg.PublishTimeoutMillis = 1500
	assert.Equal(1500*time.Millisecond, cfg.PublishTimeout())
}

func TestParseLogLevel(t *testing.T) {

	assert := assert.New(t)

	level, err := ParseLogLevel("trace")
	assert.NoError(err)
	assert.Equal(zap.DebugLevel, level)

	level, err = ParseLogLevel("")
	assert.NoError(err)
	assert.Equal(zap.InfoLevel, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(err)
}

func TestRedacted(t *testing.T) {

	assert := assert.New(t)

	cfg := validConfig()
	cfg.Influx.Password = "pass"
	cfg.MQTT.Password = "secret"

	redacted := cfg.Redacted()
	assert.Equal("*redacted*", redacted.Influx.Password)
	assert.Equal("*redacted*", redacted.MQTT.Password)
	assert.Equal("", redacted.Influx.Token)
	assert.Equal("pass", cfg.Influx.Password, "original untouched")
}
