// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry exposes Prometheus metrics for the auth pipeline.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "guidepost"
	subsystem = "auth"
)

// Rejection reasons recorded on the tokens_rejected_total counter.
const (
	ReasonExpired      = "expired"
	ReasonInvalid      = "invalid"
	ReasonKeyNotFound  = "key_not_found"
	ReasonUpstream     = "upstream_unavailable"
	ReasonMissingToken = "missing_token"
	ReasonStaleSession = "stale_session"
)

// Refresh outcomes recorded on the jwks_refreshes_total counter.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the counters published by the auth pipeline. All methods
// are safe to call on a nil receiver, so components can carry an optional
// *Metrics without guarding every increment.
type Metrics struct {
	tokensVerified    prometheus.Counter
	tokensRejected    *prometheus.CounterVec
	jwksRefreshes     *prometheus.CounterVec
	jwksStaleServes   prometheus.Counter
	identityFallbacks prometheus.Counter
	staleSessions     prometheus.Counter

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

// NewMetrics creates the auth pipeline counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		tokensVerified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_verified_total",
			Help:      "Number of bearer tokens that passed signature and claim verification.",
		}),
		tokensRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_rejected_total",
			Help:      "Number of bearer tokens rejected, by reason.",
		}, []string{"reason"}),
		jwksRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jwks_refreshes_total",
			Help:      "Number of JWKS fetch attempts, by outcome.",
		}, []string{"outcome"}),
		jwksStaleServes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jwks_stale_serves_total",
			Help:      "Number of times a stale JWKS document was served after a failed refresh.",
		}),
		identityFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "identity_fallbacks_total",
			Help:      "Number of identity resolutions that fell back to token claims.",
		}),
		staleSessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_sessions_total",
			Help:      "Number of authenticated requests whose token claims lagged the live record.",
		}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests served, by status code and method.",
		}, []string{"code", "method"}),
	}
}

// TokenVerified records a successful token verification.
func (m *Metrics) TokenVerified() {
	if m == nil {
		return
	}
	m.tokensVerified.Inc()
}

// TokenRejected records a rejected token with the given reason.
func (m *Metrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.tokensRejected.WithLabelValues(reason).Inc()
}

// JWKSRefresh records a JWKS fetch attempt with the given outcome.
func (m *Metrics) JWKSRefresh(outcome string) {
	if m == nil {
		return
	}
	m.jwksRefreshes.WithLabelValues(outcome).Inc()
}

// JWKSStaleServe records a stale JWKS document served after a failed refresh.
func (m *Metrics) JWKSStaleServe() {
	if m == nil {
		return
	}
	m.jwksStaleServes.Inc()
}

// IdentityFallback records an identity resolution that used token claims
// because the directory was unreachable.
func (m *Metrics) IdentityFallback() {
	if m == nil {
		return
	}
	m.identityFallbacks.Inc()
}

// SessionStale records a request whose token claims diverged from the live
// user record.
func (m *Metrics) SessionStale() {
	if m == nil {
		return
	}
	m.staleSessions.Inc()
}

// InstrumentHandler wraps next with the in-flight gauge and the per-status
// request counter. On a nil receiver it returns next unchanged.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerInFlight(m.httpInFlight,
		promhttp.InstrumentHandlerCounter(m.httpRequests, next))
}

// NewRegistry returns a registry pre-populated with process and Go runtime
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns an HTTP handler serving the metrics registered on reg in
// the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
