package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/berfenger/solaredge2influx/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
)

func OptsFromConfig(cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("solaredge_%d", rand.IntN(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg config.MQTTConfig, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client: mqtt.NewClient(opts),
		cfg:    cfg,
	}
}

type MQTTClient struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

// ReadingStateTopic is <base>/<device>/state for the inverter and
// <base>/<device>/<instance>/state for meters and batteries.
func (c *MQTTClient) ReadingStateTopic(device string, instance string) string {
	return readingStateTopic(c.baseTopic(), device, instance)
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// ConnectSync blocks until the broker accepts the connection or timeout elapses.
func (c *MQTTClient) ConnectSync(timeout time.Duration) error {
	done := make(chan error, 1)
	c.Connect(func(err error) { done <- err }, timeout)
	return <-done
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

func readingStateTopic(baseTopic, device, instance string) string {
	if instance == "" {
		return fmt.Sprintf("%s/%s/state", baseTopic, device)
	}
	return fmt.Sprintf("%s/%s/%s/state", baseTopic, device, instance)
}
