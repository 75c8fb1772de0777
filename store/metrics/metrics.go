// Package metrics implements a store that delegates everything to a nested store,
// counting operations and bytes in Prometheus collectors.
package metrics

import (
	"context"
	stderrs "errors"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

type Store struct {
	s        h5.Store
	ops      *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     prometheus.Gauge
}

// New wraps s with collectors registered in reg.
// Collectors already registered in reg under the same names are shared,
// so several stores can report into one registry
// when their constant labels match.
func New(s h5.Store, reg prometheus.Registerer) (*Store, error) {
	result := &Store{
		s: s,
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h5_store_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"operation", "status"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h5_store_bytes_total",
				Help: "Total number of bytes read or written",
			},
			[]string{"operation"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "h5_store_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		size: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "h5_store_size_bytes",
				Help: "Size of the store as last observed",
			},
		),
	}

	var err error
	if result.ops, err = register(reg, result.ops); err != nil {
		return nil, err
	}
	if result.bytes, err = register(reg, result.bytes); err != nil {
		return nil, err
	}
	if result.duration, err = register(reg, result.duration); err != nil {
		return nil, err
	}
	if result.size, err = register(reg, result.size); err != nil {
		return nil, err
	}
	return result, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	var are prometheus.AlreadyRegisteredError
	if stderrs.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, errors.Wrap(err, "registering collector")
}

func (s *Store) observe(op string, start time.Time, n int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.ops.WithLabelValues(op, status).Inc()
	s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if n > 0 {
		s.bytes.WithLabelValues(op).Add(float64(n))
	}
}

func (s *Store) ReadAt(ctx context.Context, off uint64, n int) ([]byte, error) {
	start := time.Now()
	b, err := s.s.ReadAt(ctx, off, n)
	s.observe("read", start, len(b), err)
	return b, err
}

func (s *Store) Size(ctx context.Context) (uint64, error) {
	start := time.Now()
	size, err := s.s.Size(ctx)
	s.observe("size", start, 0, err)
	if err == nil {
		s.size.Set(float64(size))
	}
	return size, err
}

func (s *Store) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	start := time.Now()
	off, n, err = s.s.Append(ctx, b)
	s.observe("append", start, int(n), err)
	if err == nil {
		s.size.Set(float64(off + n))
	}
	return off, n, err
}

func (s *Store) WriteAt(ctx context.Context, off uint64, b []byte) error {
	start := time.Now()
	err := s.s.WriteAt(ctx, off, b)
	n := len(b)
	if err != nil {
		n = 0
	}
	s.observe("write", start, n, err)
	return err
}

func init() {
	store.Register("metrics", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nested, prometheus.DefaultRegisterer)
	})
}
