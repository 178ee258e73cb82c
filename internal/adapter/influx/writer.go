package influx

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solaredge2influx/internal/config"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// Writer stores readings with the blocking write API. InfluxDB 1.8 is
// reached through its 2.x compatibility endpoint.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *zap.Logger
}

func NewWriter(cfg config.InfluxConfig, logger *zap.Logger) *Writer {
	opts := influxdb2.DefaultOptions()
	if timeout := cfg.WriteTimeout(); timeout >= time.Second {
		opts.SetHTTPRequestTimeout(uint(timeout.Seconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.AuthToken(), opts)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket()),
		logger:   logger,
	}
}

func (w *Writer) Write(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	if len(fields) == 0 {
		return nil
	}
	point := influxdb2.NewPointWithMeasurement(measurement).SetTime(ts)
	for k, v := range tags {
		point.AddTag(k, v)
	}
	for k, v := range fields {
		point.AddField(k, v)
	}
	if err := w.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write %s: %w", measurement, err)
	}
	w.logger.Debug("influx point written", zap.String("measurement", measurement), zap.Int("fields", len(fields)))
	return nil
}

// Ping checks that the server answers.
func (w *Writer) Ping(ctx context.Context) error {
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

func (w *Writer) Close() {
	w.client.Close()
}
