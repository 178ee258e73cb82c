package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/berfenger/solaredge2influx/internal/adapter/influx"
	mqttadapter "github.com/berfenger/solaredge2influx/internal/adapter/mqtt"
	promadapter "github.com/berfenger/solaredge2influx/internal/adapter/prometheus"
	"github.com/berfenger/solaredge2influx/internal/config"
	"github.com/berfenger/solaredge2influx/internal/core/actor"
	"github.com/berfenger/solaredge2influx/internal/core/domain"
	"github.com/berfenger/solaredge2influx/internal/core/port"
	"github.com/berfenger/solaredge2influx/internal/core/service"
	"github.com/berfenger/solaredge2influx/internal/mqtt"
	"github.com/berfenger/solaredge2influx/internal/server"
	"github.com/berfenger/solaredge2influx/internal/util/actorutil"
	"github.com/berfenger/solaredge2influx/pkg/sunspec_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, fatal <-chan error, logger *zap.Logger, done chan error) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cause error
	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully, press Ctrl+C again to force")
	case cause = <-fatal:
		logger.Error("poller stopped", zap.Error(cause))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	done <- cause
}

func main() {

	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("solaredge2influx starting", zap.String("version", versioninfo.Short()))
	safePrintConfig(*cfg, logger)

	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promadapter.RegisterBuildInfo(reg, versioninfo.Short())

	source, err := registerSource(cfg, logger)
	if err != nil {
		logger.Fatal("modbus client", zap.Error(err))
	}

	writers, closeWriters := timeSeriesWriters(cfg, logger)
	defer closeWriters()

	publisher := service.NewPublisher(service.NewMetricRegistry(promadapter.NewSink(reg)), writers,
		cfg.MonitorConfig.LegacySupport, cfg.Influx.WriteTimeout(), logger)
	observer := promadapter.NewModbusMetrics(reg)
	retry := service.RetryPolicy{
		Interval:   cfg.MonitorConfig.PollInterval(),
		MaxRetries: cfg.MonitorConfig.RetryMaxAttempts,
	}

	fatal := make(chan error, 1)
	onFatal := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(func() *actor.PollerActor {
			poller := &service.Poller{
				Source:    source,
				Publisher: publisher,
				Observer:  observer,
				Meters:    int(cfg.MonitorConfig.Meters),
				Batteries: int(cfg.MonitorConfig.Batteries),
			}
			return actor.NewPollerActor(poller, cfg.MonitorConfig.PollInterval(), retry, onFatal, logger)
		}, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Fatal("spawn master", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid, reg)
	done := make(chan error, 1)

	go gracefulShutdown(server, fatal, logger, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server error", zap.Error(err))
	}

	cause := <-done
	logger.Info("graceful shutdown complete")

	ctx.Stop(pid)
	as.Shutdown()

	if cause != nil {
		logger.Sync()
		os.Exit(1)
	}
}

func registerSource(cfg *config.Config, logger *zap.Logger) (port.RegisterSource, error) {
	mcfg := cfg.InverterModbusTcp
	switch mcfg.Driver {
	case config.DriverGoburrow:
		return sunspec_modbus.CreateGoburrowClient(mcfg.Host, mcfg.Port, uint8(mcfg.UnitId), mcfg.Timeout(), logger, nil), nil
	default:
		client, err := sunspec_modbus.CreateModbusClient(mcfg.Host, mcfg.Port, uint8(mcfg.UnitId), mcfg.Timeout(), logger, nil)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func timeSeriesWriters(cfg *config.Config, logger *zap.Logger) ([]port.TimeSeriesWriter, func()) {
	var writers []port.TimeSeriesWriter
	var closers []func()

	if cfg.Influx.Enable {
		w := influx.NewWriter(cfg.Influx, logger)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Influx.WriteTimeout())
		if err := w.Ping(ctx); err != nil {
			logger.Warn("influx not reachable yet", zap.String("url", cfg.Influx.URL), zap.Error(err))
		}
		cancel()
		writers = append(writers, w)
		closers = append(closers, w.Close)
	}

	if cfg.MQTT.Enable {
		var client *mqtt.MQTTClient
		client = mqtt.CreateMQTTClient(cfg.MQTT, mqtt.OptsFromConfig(cfg.MQTT), func(_ pahomqtt.Client) {
			client.Publish(client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(err error) {
				if err != nil {
					logger.Warn("mqtt bridge state", zap.Error(err))
				}
			}, time.Second)
		}, func(_ pahomqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

		retry := service.RetryPolicy{Interval: 5 * time.Second, MaxRetries: 3}
		err := retry.Do(context.Background(), func() error {
			return client.ConnectSync(10 * time.Second)
		}, func(err error, next time.Duration) {
			logger.Warn("mqtt connect failed", zap.Duration("retry_in", next), zap.Error(err))
		})
		if err != nil {
			logger.Error("mqtt sink disabled", zap.Error(err))
		} else {
			writers = append(writers, mqttadapter.NewWriter(client, cfg.MQTT.PublishTimeout(), logger))
			closers = append(closers, func() {
				client.Publish(client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, time.Second)
				client.Disconnect(time.Second)
			})
		}
	}

	return writers, func() {
		for _, c := range closers {
			c()
		}
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => SOLAREDGE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SOLAREDGE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("solaredge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("inverter_modbus_tcp.host", "")
	viper.SetDefault("inverter_modbus_tcp.port", 502)
	viper.SetDefault("inverter_modbus_tcp.unit_id", 1)
	viper.SetDefault("inverter_modbus_tcp.timeout_millis", 10000)
	viper.SetDefault("inverter_modbus_tcp.driver", config.DriverSimonvetter)
	viper.SetDefault("monitor.poll_interval_seconds", 5)
	viper.SetDefault("monitor.meters", 0)
	viper.SetDefault("monitor.batteries", 0)
	viper.SetDefault("monitor.legacy_support", false)
	viper.SetDefault("monitor.retry_max_attempts", 0)
	viper.SetDefault("influx.enable", true)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.database", "solaredge")
	viper.SetDefault("influx.retention_policy", "")
	viper.SetDefault("influx.username", "")
	viper.SetDefault("influx.password", "")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "")
	viper.SetDefault("influx.write_timeout_millis", 5000)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "solaredge")
	viper.SetDefault("mqtt.publish_timeout_millis", 5000)
	viper.SetDefault("port", 2112)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config, logger *zap.Logger) {
	logger.Info("using config", zap.Any("config", cfg.Redacted()))
}
