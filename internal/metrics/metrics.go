// Package metrics exposes signing activity as Prometheus metrics.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrz1836/mavsign/internal/signing"
)

const namespace = "mavsign"

// Signing holds the signing collectors shared by every connection.
type Signing struct {
	verifications *prometheus.CounterVec
	signed        prometheus.Counter
	streams       prometheus.Gauge
}

// New creates unregistered signing collectors. Every verdict label is
// pre-created so that dashboards see zeros instead of gaps.
func New() *Signing {
	s := &Signing{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Inbound frames checked, by verdict",
		}, []string{"result"}),
		signed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_total",
			Help:      "Outbound frames signed",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams",
			Help:      "Signing streams known across open connections",
		}),
	}
	for _, v := range signing.Verdicts() {
		s.verifications.WithLabelValues(v.String())
	}
	return s
}

// Register adds the collectors to reg, or to the default registerer if nil.
// Collectors that are already registered are adopted, so registering twice
// is harmless.
func (s *Signing) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var are prometheus.AlreadyRegisteredError

	if err := reg.Register(s.verifications); err != nil {
		if !errors.As(err, &are) {
			return err
		}
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			s.verifications = existing
		}
	}
	if err := reg.Register(s.signed); err != nil {
		if !errors.As(err, &are) {
			return err
		}
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			s.signed = existing
		}
	}
	if err := reg.Register(s.streams); err != nil {
		if !errors.As(err, &are) {
			return err
		}
		if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
			s.streams = existing
		}
	}
	return nil
}

// Connection returns a signing.Recorder for one connection. Its stream count
// is added to the shared gauge and withdrawn again by Close.
func (s *Signing) Connection() *Connection {
	return &Connection{s: s}
}

// Connection records one signing.Context's activity.
type Connection struct {
	s *Signing

	mu      sync.Mutex
	streams int
}

// Ensure Connection implements signing.Recorder.
var _ signing.Recorder = (*Connection)(nil)

// Verified implements signing.Recorder.
func (c *Connection) Verified(result string) {
	c.s.verifications.WithLabelValues(result).Inc()
}

// Signed implements signing.Recorder.
func (c *Connection) Signed() {
	c.s.signed.Inc()
}

// Streams implements signing.Recorder.
func (c *Connection) Streams(n int) {
	c.mu.Lock()
	delta := n - c.streams
	c.streams = n
	c.mu.Unlock()
	c.s.streams.Add(float64(delta))
}

// Close withdraws the connection's streams from the gauge.
func (c *Connection) Close() {
	c.Streams(0)
}
