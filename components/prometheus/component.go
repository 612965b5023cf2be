package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"

	nsregistry "github.com/dueldanov/nodescript/internal/registry"
	"github.com/dueldanov/nodescript/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "Prometheus",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		IsEnabled: func(_ *dig.Container) bool {
			return ParamsPrometheus.Enabled
		},
		Provide:   provide,
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies

	server       *http.Server
	registry     = prometheus.NewRegistry()
	collectHooks []func()
)

type dependencies struct {
	dig.In

	UnitRegistry *nsregistry.Registry `optional:"true"`
}

func provide(c *dig.Container) error {
	return c.Provide(func() prometheus.Registerer {
		return registry
	})
}

func configure() error {
	if ParamsPrometheus.GoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if ParamsPrometheus.ProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if ParamsPrometheus.UnitMetrics && deps.UnitRegistry != nil {
		configureUnits()
	}

	return nil
}

func addCollect(collect func()) {
	collectHooks = append(collectHooks, collect)
}

func collect() {
	for _, hook := range collectHooks {
		hook()
	}
}

func handler() http.Handler {
	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		collect()
		metrics.ServeHTTP(w, r)
	})
}

func run() error {
	return Component.Daemon().BackgroundWorker("Prometheus exporter", func(ctx context.Context) {
		Component.LogInfo("Starting Prometheus exporter ... done")

		mux := http.NewServeMux()
		mux.Handle("/metrics", handler())
		server = &http.Server{
			Addr:              ParamsPrometheus.BindAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			Component.LogInfof("You can now access the Prometheus exporter using: http://%s/metrics", ParamsPrometheus.BindAddress)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Component.LogWarnf("Stopped Prometheus exporter due to an error (%s)", err)
			}
		}()

		<-ctx.Done()
		Component.LogInfo("Stopping Prometheus exporter ...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			Component.LogWarn(err)
		}

		Component.LogInfo("Stopping Prometheus exporter ... done")
	}, daemon.PriorityPrometheus)
}
