package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
	"github.com/ThreeDotsLabs/watermill-autoconfig/listener"
)

// ContainersLister lists running listener containers, see listener.Registrar.
type ContainersLister interface {
	Containers() []listener.ContainerInfo
}

// NewRouter returns a router exposing /metrics for Prometheus and /listeners with
// the running listener containers as JSON. containers may be nil.
func NewRouter(gatherer prometheus.Gatherer, containers ContainersLister) chi.Router {
	router := chi.NewRouter()

	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	})

	router.Get("/listeners", func(w http.ResponseWriter, r *http.Request) {
		infos := []listener.ContainerInfo{}
		if containers != nil {
			infos = containers.Containers()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(infos)
	})

	return router
}

// CreateRegistryAndServeHTTP establishes an HTTP server that exposes the /metrics endpoint for Prometheus at the given address.
// It returns a new prometheus registry (to register the metrics on) and a canceling function that ends the server.
func CreateRegistryAndServeHTTP(addr string, logger watermill.LoggerAdapter) (registry *prometheus.Registry, cancel func()) {
	registry = prometheus.NewRegistry()
	return registry, ServeHTTP(addr, registry, nil, logger)
}

// ServeHTTP establishes an HTTP server with the NewRouter endpoints at the given address.
// It returns a canceling function that ends the server.
func ServeHTTP(addr string, gatherer prometheus.Gatherer, containers ContainersLister, logger watermill.LoggerAdapter) (cancel func()) {
	logger = watermill.LoggerOrNop(logger)

	server := http.Server{
		Addr:    addr,
		Handler: NewRouter(gatherer, containers),
	}

	go func() {
		logger.Info("Starting metrics server", watermill.LogFields{"addr": addr})

		err := server.ListenAndServe()
		if err != http.ErrServerClosed {
			logger.Error("Metrics server stopped", err, watermill.LogFields{"addr": addr})
		}
	}()

	return func() { _ = server.Close() }
}
