package middleware

import (
	"bytes"
	realip "github.com/Ferluci/fast-realip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/revolution1/unitgate/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"strconv"
	"strings"
	"time"
)

// user values set by the handlers and read back by the access log
const (
	ListenerKey = "unitgate.listener"
	ActionKey   = "unitgate.action"
)

// user agents of probes, their requests are logged at trace level
var healthCheckers = []string{
	"elb-healthchecker",
	"kube-probe",
	"googlehc",
	"consul health check",
	"prometheus",
}

func guessIsHealthChecker(ua string) bool {
	ua = strings.ToLower(ua)
	for _, p := range healthCheckers {
		if strings.HasPrefix(ua, p) {
			return true
		}
	}
	return false
}

func UserString(ctx *fasthttp.RequestCtx, key string) string {
	s, _ := ctx.UserValue(key).(string)
	return s
}

func AccessLogMetricHandler(prefix string, accessLog bool) MiddleWare {
	return func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			h(ctx)
			duration := time.Since(start)
			status := ctx.Response.StatusCode()
			listener := UserString(ctx, ListenerKey)
			action := UserString(ctx, ActionKey)

			var reqSize, resSize int
			if ctx.Request.IsBodyStream() {
				reqSize = len(ctx.Request.Header.RawHeaders()) + ctx.Request.Header.ContentLength() + 4
			} else {
				reqSize = len(ctx.Request.Header.RawHeaders()) + len(ctx.Request.Body()) + 4
			}
			if ctx.Response.IsBodyStream() {
				resSize = ctx.Response.Header.Len() + ctx.Response.Header.ContentLength() + 4
			} else {
				resSize = ctx.Response.Header.Len() + len(ctx.Response.Body()) + 4
			}
			if accessLog {
				fun := log.Infof
				if guessIsHealthChecker(string(ctx.UserAgent())) {
					fun = log.Tracef
				}
				fun(
					`%s%s - %s - "%s %s" %d %d %d %s "%s" %s`,
					prefix,
					listener,
					realip.FromRequest(ctx),
					ctx.Method(),
					ctx.RequestURI(),
					status,
					reqSize,
					resSize,
					action,
					ctx.UserAgent(),
					duration,
				)
			}
			if bytes.Equal(ctx.Method(), []byte(fasthttp.MethodOptions)) {
				return
			}
			metrics.RecvBytes.Add(float64(reqSize))
			metrics.SentBytes.Add(float64(resSize))
			metrics.ReqDuration.With(prometheus.Labels{
				"listener": listener,
				"code":     strconv.Itoa(status),
				"action":   action,
			}).Observe(float64(duration) / float64(time.Second))
		}
	}
}
