package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CK6170/Oxyfit-go/fit"
)

// fit outcome label values
const (
	outcomeConverged   = "converged"
	outcomeUnconverged = "unconverged"
	outcomeCanceled    = "canceled"
	outcomeError       = "error"
)

type metrics struct {
	reg           *prometheus.Registry
	reductions    *prometheus.CounterVec
	fits          *prometheus.CounterVec
	fitDuration   prometheus.Histogram
	fitIterations prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		reductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxyfit",
			Name:      "reductions_total",
			Help:      "Titration runs reduced, by result.",
		}, []string{"result"}),
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxyfit",
			Name:      "fits_total",
			Help:      "Sensor fits finished, by outcome.",
		}, []string{"outcome"}),
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oxyfit",
			Name:      "fit_duration_seconds",
			Help:      "Wall time of a sensor fit.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		fitIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oxyfit",
			Name:      "fit_iterations",
			Help:      "Levenberg-Marquardt iterations per fit.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 1400},
		}),
	}
	m.reg.MustRegister(m.reductions, m.fits, m.fitDuration, m.fitIterations)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *metrics) reduced(err error) {
	if err != nil {
		m.reductions.WithLabelValues("error").Inc()
		return
	}
	m.reductions.WithLabelValues("ok").Inc()
}

func (m *metrics) fitted(outcome string, started time.Time, res *fit.Result) {
	m.fits.WithLabelValues(outcome).Inc()
	m.fitDuration.Observe(time.Since(started).Seconds())
	if res != nil {
		m.fitIterations.Observe(float64(res.Status.Iterations))
	}
}
