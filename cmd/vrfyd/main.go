// vrfyd is the address-verification cache daemon.
package main

import (
	"flag"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athena-mta/verigate/internal/config"
	"github.com/athena-mta/verigate/internal/daemon"
	"github.com/athena-mta/verigate/internal/logging"
	"github.com/athena-mta/verigate/internal/metrics"
	"github.com/athena-mta/verigate/internal/table"
	"github.com/athena-mta/verigate/internal/vrfy"
)

func main() {
	configPath := flag.String("config", "/etc/verigate/vrfyd.toml", "path to configuration file")
	debugPort := flag.String("debug-port", "", "enable a /metrics debug server on this port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Daemon.LogLevel, os.Stdout)
	logger.Info("vrfyd starting", "config", *configPath, "socket", cfg.Daemon.SocketPath)

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

	tbl, err := openVerifyMap(cfg.Verify.Map)
	if err != nil {
		logger.Error("opening address verify map", "error", err)
		os.Exit(1)
	}

	submitter, err := vrfy.NewMaildropSubmitter(cfg.Verify.MaildropDir, logger)
	if err != nil {
		logger.Error("preparing maildrop submitter", "error", err)
		os.Exit(1)
	}

	policyCfg, err := buildPolicyConfig(cfg.Verify)
	if err != nil {
		logger.Error("invalid address_verify configuration", "error", err)
		os.Exit(1)
	}

	cache := vrfy.NewCache(tbl, policyCfg, submitter, time.Now, logger)
	service := vrfy.NewService(cache, logger)

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

	// Unlike the proxy, the verifier never wires a PreAccept self-restart
	// hook: its own writes (UPDATE, refresh write-back) mutate the backing
	// table's on-disk state as a matter of course, so a mtime-based
	// Changed() signal would fire after the verifier's own traffic, not
	// just an external rewrite. Self-restart-on-change is proxy-only.

	go reportCacheSize(tbl)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serveErr := make(chan error, 1)
	go func() { serveErr <- skeleton.Serve() }()

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reloading address_verify configuration")
				newCfg, err := config.Load(*configPath)
				if err != nil {
					logger.Error("failed to reload configuration", "error", err)
					continue
				}
				newPolicyCfg, err := buildPolicyConfig(newCfg.Verify)
				if err != nil {
					logger.Error("invalid reloaded address_verify configuration", "error", err)
					continue
				}
				cache.SetConfig(newPolicyCfg)
				logger.Info("address_verify configuration reloaded")
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("received shutdown signal", "signal", sig.String())
				skeleton.Stop()
				logger.Info("vrfyd stopped")
				return
			}
		case err := <-serveErr:
			if err != nil {
				logger.Error("accept loop exited", "error", err)
			}
			logger.Info("vrfyd stopping: accept loop exited")
			return
		}
	}
}

func openVerifyMap(ref string) (table.Table, error) {
	if ref == "" {
		return table.NewMemTable(table.FlagReadWrite), nil
	}
	scope := daemon.Umask022()
	defer scope.Release()
	return table.Open(ref, table.FlagReadWrite|table.FlagCreate)
}

func buildPolicyConfig(v config.VerifyConfig) (vrfy.Config, error) {
	posExpire, err := config.ParseDuration(v.PositiveExpireTime)
	if err != nil {
		return vrfy.Config{}, err
	}
	posRefresh, err := config.ParseDuration(v.PositiveRefreshTime)
	if err != nil {
		return vrfy.Config{}, err
	}
	negExpire, err := config.ParseDuration(v.NegativeExpireTime)
	if err != nil {
		return vrfy.Config{}, err
	}
	negRefresh, err := config.ParseDuration(v.NegativeRefreshTime)
	if err != nil {
		return vrfy.Config{}, err
	}
	return vrfy.Config{
		PositiveExpire:  posExpire,
		PositiveRefresh: posRefresh,
		NegativeExpire:  negExpire,
		NegativeRefresh: negRefresh,
		NegativeCache:   v.NegativeCache,
		ProbeTTL:        config.ProbeTTL,
		Sender:          v.Sender,
	}, nil
}

func reportCacheSize(tbl table.Table) {
	mt, ok := tbl.(*table.MemTable)
	if !ok {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.VrfyCacheEntries.Set(float64(mt.Count()))
	}
}
