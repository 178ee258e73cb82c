package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/solaredge2influx/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	gatherer    prometheus.Gatherer
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, gatherer prometheus.Gatherer) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
		gatherer:    gatherer,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
