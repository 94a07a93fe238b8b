package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Domain
	TendersSubmitted    *prometheus.CounterVec
	ModerationDecisions *prometheus.CounterVec
	EmailsSent          *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenders",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tenders",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tenders",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tenders",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenders",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),

		TendersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenders",
				Name:      "submitted_total",
				Help:      "Tender submissions by stage they landed in.",
			},
			[]string{"stage"}, // stage=PENDING|PUBLISHED
		),
		ModerationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenders",
				Name:      "moderation_decisions_total",
				Help:      "Admin decisions on pending tenders.",
			},
			[]string{"decision"}, // decision=approved|rejected
		),
		EmailsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenders",
				Subsystem: "mail",
				Name:      "sent_total",
				Help:      "Outbound emails by kind and result.",
			},
			[]string{"kind", "result"},
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal, p.TendersSubmitted, p.ModerationDecisions, p.EmailsSent)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// The domain helpers are nil safe so handlers can run without metrics in tests.

func (p *Prom) IncSubmitted(stage string) {
	if p == nil {
		return
	}
	p.TendersSubmitted.WithLabelValues(stage).Inc()
}

func (p *Prom) IncDecision(decision string) {
	if p == nil {
		return
	}
	p.ModerationDecisions.WithLabelValues(decision).Inc()
}

func (p *Prom) IncEmail(kind string, err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.EmailsSent.WithLabelValues(kind, result).Inc()
}
