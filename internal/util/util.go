package util

import (
	"github.com/berfenger/solaredge2influx/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		InverterModbusTcp: config.InverterModbusTCPConfig{
			Host:          "127.0.0.1",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
			Driver:        config.DriverSimonvetter,
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalSeconds: 1,
			Meters:              1,
			Batteries:           1,
		},
		Influx: config.InfluxConfig{
			URL:                "http://localhost:8086",
			Database:           "solaredge",
			WriteTimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "solaredge",
		},
		Port: 2112,
	}
}
