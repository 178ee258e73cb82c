package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DriverSimonvetter = "simonvetter"
	DriverGoburrow    = "goburrow"

	MaxMeters    = 3
	MaxBatteries = 2

	DefaultMQTTPublishTimeout = 5 * time.Second
)

type Config struct {
	LogLevel          zapcore.Level
	InverterModbusTcp InverterModbusTCPConfig `mapstructure:"inverter_modbus_tcp"`
	MonitorConfig     MonitorConfig           `mapstructure:"monitor"`
	Influx            InfluxConfig            `mapstructure:"influx"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`
	Port              uint                    `mapstructure:"port"`
	HttpLog           bool                    `mapstructure:"http_log"`
}

type InverterModbusTCPConfig struct {
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
	Driver        string
}

type MonitorConfig struct {
	PollIntervalSeconds uint32 `mapstructure:"poll_interval_seconds"`
	Meters              uint
	Batteries           uint
	LegacySupport       bool   `mapstructure:"legacy_support"`
	RetryMaxAttempts    uint64 `mapstructure:"retry_max_attempts"`
}

type InfluxConfig struct {
	Enable             bool
	URL                string `mapstructure:"url"`
	Database           string
	RetentionPolicy    string `mapstructure:"retention_policy"`
	Username           string
	Password           string
	Token              string
	Org                string
	WriteTimeoutMillis uint32 `mapstructure:"write_timeout_millis"`
}

type MQTTConfig struct {
	Enable    bool
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`

	PublishTimeoutMillis uint32 `mapstructure:"publish_timeout_millis"`
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c InverterModbusTCPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c InfluxConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMillis) * time.Millisecond
}

// Bucket returns the write target, "<database>/<retention policy>" when a
// retention policy is set.
// PublishTimeout falls back to DefaultMQTTPublishTimeout when unset.
func (c MQTTConfig) PublishTimeout() time.Duration {
	if c.PublishTimeoutMillis == 0 {
		return DefaultMQTTPublishTimeout
	}
	return time.Duration(c.PublishTimeoutMillis) * time.Millisecond
}

func (c InfluxConfig) Bucket() string {
	if c.RetentionPolicy != "" {
		return fmt.Sprintf("%s/%s", c.Database, c.RetentionPolicy)
	}
	return c.Database
}

// AuthToken returns the 2.x token, or "user:pass" for 1.8 compatibility.
func (c InfluxConfig) AuthToken() string {
	if c.Token != "" {
		return c.Token
	}
	if c.Username != "" || c.Password != "" {
		return fmt.Sprintf("%s:%s", c.Username, c.Password)
	}
	return ""
}

// Validate checks bounds and normalizes the MQTT base topic.
func (c *Config) Validate() error {
	if c.InverterModbusTcp.Host == "" {
		return errors.New("config param inverter_modbus_tcp.host is required")
	}
	if c.InverterModbusTcp.UnitId > 247 {
		return errors.New("config param inverter_modbus_tcp.unit_id should be <= 247")
	}
	switch c.InverterModbusTcp.Driver {
	case DriverSimonvetter, DriverGoburrow:
	default:
		return fmt.Errorf("config param inverter_modbus_tcp.driver should be %q or %q", DriverSimonvetter, DriverGoburrow)
	}
	if c.MonitorConfig.Meters > MaxMeters {
		return fmt.Errorf("config param monitor.meters should be <= %d", MaxMeters)
	}
	if c.MonitorConfig.Batteries > MaxBatteries {
		return fmt.Errorf("config param monitor.batteries should be <= %d", MaxBatteries)
	}
	if c.MonitorConfig.PollIntervalSeconds < 1 {
		return errors.New("config param monitor.poll_interval_seconds should be >= 1")
	}
	if c.Influx.Enable && c.Influx.URL == "" {
		return errors.New("config param influx.url is required when influx is enabled")
	}
	if c.MQTT.Enable {
		baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		c.MQTT.BaseTopic = baseTopic
	}
	return nil
}

// ParseLogLevel maps the configured level name to a zap level. trace is an
// alias of debug and an empty name means info.
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	case "fatal":
		return zap.FatalLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("config param log_level: unknown level %q", level)
	}
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	redact := func(s *string) {
		if *s != "" {
			*s = "*redacted*"
		}
	}
	redact(&c.Influx.Username)
	redact(&c.Influx.Password)
	redact(&c.Influx.Token)
	redact(&c.MQTT.Username)
	redact(&c.MQTT.Password)
	return c
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
