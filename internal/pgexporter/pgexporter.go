// Package pgexporter wires the configuration, the metrics core and
// the HTTP surface together and owns the accept loop: one goroutine
// per connection, each a one-shot scrape (spec.md §5 "Scheduling
// model").
package pgexporter

import (
	"context"
	"fmt"
	"net"

	"github.com/lesovsky/pgexporter/internal/cache"
	"github.com/lesovsky/pgexporter/internal/config"
	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/webserver"
)

// BuildVersion is stamped at link time by the build, defaulting to
// "unknown" for unreleased builds.
var BuildVersion = "unknown"

// Start builds the metrics core from cfg and serves it on
// cfg.ListenAddress until ctx is cancelled or the listener fails.
func Start(ctx context.Context, cfg *config.Config) error {
	log.Infof("starting on %s", cfg.ListenAddress)

	servers := cfg.BuildServers()

	entries, err := cfg.BuildEntries()
	if err != nil {
		return fmt.Errorf("build metric entries: %w", err)
	}

	srv := &webserver.Server{
		Entries:      entries,
		Servers:      servers,
		Filters:      cfg.Filters(),
		Cache:        cache.New(cfg.MetricsCacheMaxAge, cfg.MetricsCacheMaxSize),
		BuildVersion: BuildVersion,
		ReadTimeout:  cfg.ReadTimeout(),
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- acceptLoop(ctx, listener, srv)
	}()

	select {
	case <-ctx.Done():
		log.Info("exit signaled, stop accepting connections")
		_ = listener.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

// acceptLoop accepts connections until the listener is closed,
// dispatching each to its own goroutine (spec.md §5: "one HTTP
// handler instance per accepted connection, each running in its own
// isolated context").
func acceptLoop(ctx context.Context, listener net.Listener, srv *webserver.Server) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		go func() {
			defer conn.Close()
			srv.HandleConn(ctx, conn)
		}()
	}
}
