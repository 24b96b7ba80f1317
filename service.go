package plumcast

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aistore-labs/plumcast/cmn/nlog"
	"github.com/aistore-labs/plumcast/config"
	"github.com/aistore-labs/plumcast/nodeid"
	"github.com/aistore-labs/plumcast/registry"
	"github.com/aistore-labs/plumcast/stats"
)

// Service is the process-wide registry and transport task every Node in
// a process is built against. Construct one with ServiceBuilder, then
// drive it with Run on its own goroutine for as long as its Nodes live.
type Service = registry.Service

// ServiceBuilder configures a Service before Finish binds its UDP
// socket.
type ServiceBuilder struct {
	bindAddr string
	gen      nodeid.Generator
	prom     prometheus.Registerer
	logOut   io.Writer
}

// NewServiceBuilder starts a builder for a Service bound at bindAddr
// (host:port; port 0 picks a free port). Defaults: serial id generation,
// no Prometheus export, logs to stderr.
func NewServiceBuilder(bindAddr string) *ServiceBuilder {
	return &ServiceBuilder{bindAddr: bindAddr, gen: nodeid.NewSerialGenerator()}
}

// IdGenerator replaces the strategy used to mint LocalNodeIds.
func (b *ServiceBuilder) IdGenerator(g nodeid.Generator) *ServiceBuilder { b.gen = g; return b }

// MetricsRegisterer enables Prometheus export of the Service's and its
// Nodes' counters into r.
func (b *ServiceBuilder) MetricsRegisterer(r prometheus.Registerer) *ServiceBuilder {
	b.prom = r
	return b
}

// LogOutput redirects this library's log lines into w.
func (b *ServiceBuilder) LogOutput(w io.Writer) *ServiceBuilder { b.logOut = w; return b }

// FromConfig overlays cfg's Service-level tunables onto the builder.
func (b *ServiceBuilder) FromConfig(cfg config.Config) *ServiceBuilder {
	if cfg.BindAddr != "" {
		b.bindAddr = cfg.BindAddr
	}
	return b
}

// Finish binds the socket and returns the Service, ready to Run.
func (b *ServiceBuilder) Finish() (*Service, error) {
	if b.logOut != nil {
		nlog.SetOutput(b.logOut)
	}
	svc, err := registry.New(b.bindAddr, b.gen, stats.NewServiceMetrics(b.prom))
	if err != nil {
		return nil, wrapErr(InvalidInput, err, "binding plumcast service at "+b.bindAddr)
	}
	return svc, nil
}
