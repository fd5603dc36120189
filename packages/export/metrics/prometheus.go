package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics to path for the node-exporter
// textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// Server exposes /metrics while a run is in progress
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   log.Logger
	done     chan struct{}
}

// Serve starts listening on addr (":9464", "127.0.0.1:0") and serves the
// collector's metrics until Close is called
func (c *Collector) Serve(addr string, logger log.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	s := &Server{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		logger:   logger.New("component", "metrics"),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", "err", err)
		}
	}()
	s.logger.Info("Serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr is the address the server listens on
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close shuts the server down, waiting up to the ctx deadline for scrapes in flight
func (s *Server) Close(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
