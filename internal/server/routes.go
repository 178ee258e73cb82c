package server

import (
	"net/http"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 5 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.PollerStatusRequest{}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.PollerStatusResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected status response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, response)
}
