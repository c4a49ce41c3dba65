// Copyright 2026 The Authgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PermissionChecksTotal *prometheus.CounterVec
	ResolutionDuration    prometheus.Histogram
	ResolutionCacheHits   prometheus.Counter
	ResolutionCacheMisses prometheus.Counter

	M2MTokensIssuedTotal    prometheus.Counter
	M2MVerificationsTotal   *prometheus.CounterVec
	ExpiredTokensSweptTotal prometheus.Counter
}

// New builds and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_http_requests_total",
			Help: "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PermissionChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_permission_checks_total",
			Help: "Permission guard decisions by outcome (allowed, denied).",
		}, []string{"outcome"}),
		ResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_rbac_resolution_duration_seconds",
			Help:    "Latency of full role and permission resolution.",
			Buckets: prometheus.DefBuckets,
		}),
		ResolutionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_rbac_cache_hits_total",
			Help: "Resolution cache hits.",
		}),
		ResolutionCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_rbac_cache_misses_total",
			Help: "Resolution cache misses.",
		}),
		M2MTokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_m2m_tokens_issued_total",
			Help: "Access tokens issued via the client credentials flow.",
		}),
		M2MVerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_m2m_verifications_total",
			Help: "M2M credential verifications by outcome (ok, rejected).",
		}, []string{"outcome"}),
		ExpiredTokensSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_expired_tokens_swept_total",
			Help: "Expired access tokens removed by the cleanup job.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.ResolutionDuration,
		m.ResolutionCacheHits,
		m.ResolutionCacheMisses,
		m.M2MTokensIssuedTotal,
		m.M2MVerificationsTotal,
		m.ExpiredTokensSweptTotal,
	)

	return m
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
