package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgateway/internal/arbiter"
	"authgateway/internal/auditor"
	"authgateway/internal/platform/config"
	"authgateway/internal/platform/httpserver"
	"authgateway/internal/platform/logger"
	"authgateway/internal/platform/tracer"
	"authgateway/internal/session"
	"authgateway/internal/shutdown"
	"authgateway/internal/subprocs"
	httptransport "authgateway/internal/transport/http"
)

const shutdownGrace = 10 * time.Second

// run wires the whole system together and blocks until it shuts down: the
// decision endpoints, the audit backend, and the two supervised proxies.
// Any child exiting takes the gateway down with it.
func run(confPath string) error {
	conf, err := config.Load(confPath)
	if err != nil {
		return err
	}
	log := logger.New()

	log.Info("initializing authgateway",
		"domain", conf.Gateway.Domain,
		"apps", len(conf.Apps),
		"auditor", conf.Auditor.Provider,
	)

	registry := auditor.NewRegistry()
	if err := registry.Init(conf.Auditor, auditor.Options{Logger: log}); err != nil {
		return err
	}

	sh := shutdown.New(log)
	procs, err := subprocs.Build(conf, sh)
	if err != nil {
		return err
	}

	resolver := session.NewResolver(conf.SessionEndpoint(), conf.AuthProxy.Session.Name, nil, log)
	opts := []arbiter.Option{}
	if os.Getenv("AUTHGATEWAY_TRACING") == "otel" {
		opts = append(opts, arbiter.WithTracer(tracer.NewOTel()))
	}
	svc := arbiter.New(conf, resolver, registry, log, opts...)

	handler := httptransport.NewHandler(svc, conf, log)
	router := httptransport.NewRouter(handler, log)

	addr := conf.Gateway.Bind.Addr()
	srv := httpserver.New(addr, router)

	log.Info("starting http server", "addr", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			sh.Fatal(1)
		}
	}()

	if err := procs.Spawn(); err != nil {
		log.Error("starting child processes", "error", err)
	}

	go handleSignals(sh, procs, log)

	<-sh.Done()

	log.Info("shutting down")
	if err := httpserver.Shutdown(srv, shutdownGrace); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	procs.AuthProxy.Wait()
	procs.HTTPProxy.Wait()

	if code := sh.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}

// handleSignals translates process signals into lifecycle operations. A
// second interrupt is handled by the shutdown manager as a forced exit.
func handleSignals(sh *shutdown.Manager, procs *subprocs.Procs, log *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range ch {
		if sig != syscall.SIGHUP {
			sh.Stop()
			continue
		}

		log.Info("reloading and logrotating child processes")
		procs.AuthProxy.Reload()
		procs.AuthProxy.Logrotate()
		// The HTTP proxy re-reads its routing config this way; a proxy
		// that cannot reload would serve stale routes forever.
		if !procs.HTTPProxy.Reload() {
			log.Error("http proxy must support reloading")
			sh.Fatal(1)
			return
		}
		procs.HTTPProxy.Logrotate()
		log.Info("child processes signaled")
	}
}
