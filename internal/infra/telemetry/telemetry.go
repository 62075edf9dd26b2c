package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
)

// Provider holds application-level Prometheus collectors. Request metrics
// live in the HTTP middleware; this covers the authorization internals.
type Provider struct {
	cacheLookups *prometheus.CounterVec
}

// Attach registers the application collectors with the default registerer.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	cacheLookups := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "permission_cache_lookups_total",
		Help:      "Permission cache lookups partitioned by outcome",
	}, []string{"outcome"})

	return &Provider{cacheLookups: cacheLookups}, nil
}

// ObserveCacheLookup records a permission cache lookup outcome ("hit" or "miss").
func (p *Provider) ObserveCacheLookup(outcome string) {
	if p == nil || p.cacheLookups == nil {
		return
	}
	p.cacheLookups.WithLabelValues(outcome).Inc()
}
