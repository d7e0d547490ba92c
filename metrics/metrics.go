package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const Namespace = "unitgate"

// since prometheus/client_golang use net/http we need this net/http adapter for fasthttp
var PrometheusHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

var (
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "request latencies by listener and action",
			Buckets:   []float64{.005, .01, .02, .04, .06, .1, .2, .4, .6, 1, 2, 4},
		},
		[]string{"listener", "code", "action"},
	)
	AppRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "application_requests_total",
			Help:      "Total number of requests dispatched to an application.",
		},
		[]string{"application", "attached"},
	)
	ProxyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "proxy_errors_total",
			Help:      "Total number of failed upstream requests.",
		},
		[]string{"target"},
	)
	SentBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "server_bytes_sent",
		Help:      "total bytes sent by server",
	})
	RecvBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "server_bytes_recv",
		Help:      "total bytes received by server",
	})
	Reloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of configuration reloads by result.",
		},
		[]string{"result"},
	)
	Generation = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "config_generation",
		Help:      "generation of the configuration in use",
	})
)

func init() {
	prometheus.MustRegister(
		ReqDuration, AppRequests, ProxyErrors, SentBytes, RecvBytes,
		Reloads, Generation,
	)
}
