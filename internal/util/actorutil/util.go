package actorutil

import (
	"log/slog"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

// RespondAfter answers the sender of the current message with the result of
// future, or with mapFn(err) if the future fails.
func RespondAfter(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	sender := ctx.Sender()
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			msg = mapFn(err)
		}
		if sender != nil {
			ctx.Send(sender, msg)
		}
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.PanicLevel, zap.FatalLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}
