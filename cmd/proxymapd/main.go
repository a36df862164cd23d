// proxymapd is the table-proxy daemon.
package main

import (
	"flag"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athena-mta/verigate/internal/config"
	"github.com/athena-mta/verigate/internal/daemon"
	"github.com/athena-mta/verigate/internal/logging"
	"github.com/athena-mta/verigate/internal/metrics"
	"github.com/athena-mta/verigate/internal/proxymap"
)

func main() {
	configPath := flag.String("config", "/etc/verigate/proxymapd.toml", "path to configuration file")
	debugPort := flag.String("debug-port", "", "enable a /metrics debug server on this port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Daemon.LogLevel, os.Stdout)
	logger.Info("proxymapd starting", "config", *configPath, "socket", cfg.Daemon.SocketPath)

	if *debugPort != "" {
		go func() {
			mux := nethttp.NewServeMux()
			mux.Handle("GET /metrics", promhttp.Handler())
			addr := "127.0.0.1:" + *debugPort
			if err := nethttp.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics debug server failed", "error", err)
			}
		}()
	}

	if err := daemon.DetachProcessGroup(); err != nil {
		logger.Warn("failed to detach process group", "error", err)
	}

	// Build the allow-list before opening any proxied table handles.
	allow := proxymap.NewAllowlist(cfg.Proxy.ReadMaps)
	handles := proxymap.NewHandleCache()
	service := proxymap.NewService(allow, handles, logger)

	os.Remove(cfg.Daemon.SocketPath)
	listener, err := net.Listen("unix", cfg.Daemon.SocketPath)
	if err != nil {
		logger.Error("listening on socket", "path", cfg.Daemon.SocketPath, "error", err)
		os.Exit(1)
	}

	if err := daemon.WritePIDFile(cfg.Daemon.PIDFile); err != nil {
		logger.Warn("failed to write PID file", "path", cfg.Daemon.PIDFile, "error", err)
	} else {
		defer daemon.RemovePIDFile(cfg.Daemon.PIDFile)
	}

	skeleton := daemon.NewSkeleton(listener, service.Handle, logger)
	// Exit cleanly when any opened backing table has changed on disk, so
	// the supervisor starts a fresh process with fresh handles.
	skeleton.PreAccept = func() error {
		if handles.Changed() {
			return fmt.Errorf("a proxied table changed on disk")
		}
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- skeleton.Serve() }()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		skeleton.Stop()
		logger.Info("proxymapd stopped")
	case err := <-serveErr:
		if err != nil {
			logger.Error("accept loop exited", "error", err)
		}
		metrics.ProxyRestarts.Inc()
		logger.Info("proxymapd self-restarting: backing table changed")
	}
}
