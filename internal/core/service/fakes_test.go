package service

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/berfenger/solaredge2influx/internal/core/port"
)

type recordedGauge struct {
	mu    sync.Mutex
	help  string
	value float64
	sets  int
}

func (g *recordedGauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
	g.sets++
}

type recordingSink struct {
	mu      sync.Mutex
	gauges  map[string]*recordedGauge
	created int
	fail    map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{gauges: map[string]*recordedGauge{}, fail: map[string]bool{}}
}

func (s *recordingSink) Gauge(name, help string, labels ...string) (port.Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[name] {
		return nil, errors.New("invalid metric name")
	}
	s.created++
	g := &recordedGauge{help: help}
	s.gauges[name] = g
	return g, nil
}

func (s *recordingSink) value(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gauges[name]
	if !ok {
		return 0, false
	}
	return g.value, true
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]float64
	ts          time.Time
}

type recordingWriter struct {
	mu     sync.Mutex
	points []point
	err    error
	delay  time.Duration
}

func (w *recordingWriter) Write(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, point{measurement, maps.Clone(tags), maps.Clone(fields), ts})
	return nil
}

func (w *recordingWriter) recorded() []point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]point(nil), w.points...)
}

type observedRead struct {
	section string
	err     error
}

type recordingObserver struct {
	reads []observedRead
}

func (o *recordingObserver) ObserveRead(section string, d time.Duration, err error) {
	o.reads = append(o.reads, observedRead{section, err})
}

func (o *recordingObserver) sections() []string {
	var s []string
	for _, r := range o.reads {
		s = append(s, r.section)
	}
	return s
}
