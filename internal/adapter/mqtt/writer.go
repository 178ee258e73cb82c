package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/solaredge2influx/internal/mqtt"

	"go.uber.org/zap"
)

type publisher interface {
	ReadingStateTopic(device string, instance string) string
	Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration)
}

// Writer publishes each reading as one JSON document on the device state topic.
type Writer struct {
	client  publisher
	timeout time.Duration
	logger  *zap.Logger
}

type readingPayload struct {
	Measurement string             `json:"measurement"`
	Time        string             `json:"time"`
	Tags        map[string]string  `json:"tags"`
	Fields      map[string]float64 `json:"fields"`
}

func NewWriter(client *mqtt.MQTTClient, timeout time.Duration, logger *zap.Logger) *Writer {
	return &Writer{client: client, timeout: timeout, logger: logger}
}

func (w *Writer) Write(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	payload, err := json.Marshal(readingPayload{
		Measurement: measurement,
		Time:        ts.UTC().Format(time.RFC3339),
		Tags:        tags,
		Fields:      fields,
	})
	if err != nil {
		return fmt.Errorf("mqtt payload: %w", err)
	}
	topic := w.client.ReadingStateTopic(tags["device"], tags["instance"])
	w.logger.Debug("mqtt publish", zap.String("topic", topic), zap.Int("fields", len(fields)))

	done := make(chan error, 1)
	w.client.Publish(topic, payload, 0, false, func(err error) { done <- err }, w.timeout)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
