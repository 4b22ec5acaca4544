package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kimsabu"

type metrics struct {
	renders     prometheus.Counter
	renderEmpty prometheus.Counter
	inquiries   prometheus.Counter
	bootTime    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		renders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "renders_total",
			Help:      "Documents rendered to HTML",
		}),
		renderEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "render_empty_total",
			Help:      "Non-empty stored documents that rendered to nothing",
		}),
		inquiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inquiries_total",
			Help:      "Contact form submissions stored",
		}),
		bootTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "boot_time",
			Help:      "Server startup time",
		}),
	}
	m.bootTime.Set(float64(time.Now().UnixMilli()))
	reg.MustRegister(m.renders, m.renderEmpty, m.inquiries, m.bootTime)
	return m
}

// rendered counts a render of content that produced html. A nil
// receiver records nothing.
func (m *metrics) rendered(content, html string) {
	if m == nil {
		return
	}
	m.renders.Inc()
	if html == "" && content != "" {
		m.renderEmpty.Inc()
	}
}

func (m *metrics) inquiryStored() {
	if m == nil {
		return
	}
	m.inquiries.Inc()
}
