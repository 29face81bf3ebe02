// Package metrics owns the Prometheus registry the gateway scrapes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Service   string
	Version   string
	Revision  string
	BuildDate string
}

type Config struct {
	Build BuildInfo
	// skip go_* and process_* collectors
	NoRuntime bool
}

type Provider struct {
	reg *prometheus.Registry
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()

	if !cfg.NoRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"service", "version", "revision", "build_date"},
	)
	reg.MustRegister(build)
	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	if v.Service == "" {
		v.Service = "catalog-gateway"
	}
	build.WithLabelValues(v.Service, v.Version, v.Revision, v.BuildDate).Set(1)

	return &Provider{reg: reg}
}

// Handler serves the registry; collection errors are reported in the response.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{
		Registry:      p.reg,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	p.reg.MustRegister(cs...)
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }
