// Command virtrpcd is the RPC dispatch daemon: it loads configuration,
// wires the auth/metrics/telemetry/archive collaborators into a
// dispatch.Dispatcher, and serves it over internal/transport until signaled
// to stop.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/virtrpcd/virtrpcd/internal/adminapi"
	"github.com/virtrpcd/virtrpcd/internal/archive"
	"github.com/virtrpcd/virtrpcd/internal/auth"
	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"github.com/virtrpcd/virtrpcd/internal/auth/kerberos"
	"github.com/virtrpcd/virtrpcd/internal/auth/plain"
	"github.com/virtrpcd/virtrpcd/internal/auth/throttle"
	"github.com/virtrpcd/virtrpcd/internal/config"
	"github.com/virtrpcd/virtrpcd/internal/dispatch"
	"github.com/virtrpcd/virtrpcd/internal/hypervisor/fake"
	"github.com/virtrpcd/virtrpcd/internal/logger"
	"github.com/virtrpcd/virtrpcd/internal/metrics"
	metricsprom "github.com/virtrpcd/virtrpcd/internal/metrics/prometheus"
	"github.com/virtrpcd/virtrpcd/internal/telemetry"
	"github.com/virtrpcd/virtrpcd/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configFile := flag.String("config", "", "path to config file (default: $XDG_CONFIG_HOME/virtrpcd/config.yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("virtrpcd %s (commit: %s)\n", version, commit)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
		ServiceVersion: version,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	credStore, err := credstore.Open(cfg.Auth.CredStore.Backend, cfg.Auth.CredStore.DSN)
	if err != nil {
		log.Fatalf("failed to open credential store: %v", err)
	}
	defer func() {
		if err := credStore.Close(); err != nil {
			logger.Error("credstore close error", "error", err)
		}
	}()

	mechanism, err := buildMechanism(cfg.Auth, credStore)
	if err != nil {
		log.Fatalf("failed to configure auth mechanism: %v", err)
	}

	var thr *throttle.Throttle
	if cfg.Auth.Throttle.Enabled {
		thr, err = throttle.Open(cfg.Auth.Throttle.Path, cfg.Auth.Throttle.MaxAttempts, cfg.Auth.Throttle.Window)
		if err != nil {
			log.Fatalf("failed to open auth throttle: %v", err)
		}
		defer func() {
			if err := thr.Close(); err != nil {
				logger.Error("throttle close error", "error", err)
			}
		}()
	}

	archiveStore, err := archive.Open(ctx, archive.Config{
		Backend: cfg.Archive.Backend,
		Path:    cfg.Archive.Path,
		Bucket:  cfg.Archive.Bucket,
		Region:  cfg.Archive.Region,
	})
	if err != nil {
		log.Fatalf("failed to open domain-XML archive: %v", err)
	}
	defer func() {
		if err := archiveStore.Close(); err != nil {
			logger.Error("archive close error", "error", err)
		}
	}()

	var rpcMetrics metrics.RPCMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		rpcMetrics = metricsprom.NewRPCMetrics()
		startMetricsServer(cfg.Metrics.Port)
	}

	dp := dispatch.New(dispatch.BuildTable(), fake.New(), mechanism, thr)
	dp.SetMetrics(rpcMetrics)
	dp.SetArchive(archiveStore)

	tcfg := transport.Config{
		Address:         cfg.Listen.Address,
		ReadOnly:        cfg.Listen.ReadOnly,
		AuthRequired:    mechanism != nil,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if mechanism != nil {
		tcfg.Mechanism = mechanism.Name()
	}
	if cfg.Listen.TLS.Enabled {
		tlsCfg, err := loadTLSConfig(cfg.Listen.TLS.CertFile, cfg.Listen.TLS.KeyFile)
		if err != nil {
			log.Fatalf("failed to load TLS material: %v", err)
		}
		tcfg.TLS = tlsCfg
	}

	srv := transport.New(tcfg, dp)
	srv.SetMetrics(rpcMetrics)

	var adminSrv *adminapi.Server
	if cfg.Admin.Enabled {
		adminSrv, err = adminapi.NewServer(adminapi.Config{Address: cfg.Admin.Address, JWTSecret: cfg.Admin.JWTSecret}, credStore, srv)
		if err != nil {
			log.Fatalf("failed to configure admin API: %v", err)
		}
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Serve(ctx) }()

	adminDone := make(chan error, 1)
	if adminSrv != nil {
		go func() { adminDone <- adminSrv.Start(ctx) }()
	} else {
		close(adminDone)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("virtrpcd listening", "address", cfg.Listen.Address, "mechanism", cfg.Auth.Mechanism)

	var serveErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		serveErr = <-serverDone
	case serveErr = <-serverDone:
		signal.Stop(sigChan)
		cancel()
	}

	if adminSrv != nil {
		if err := <-adminDone; err != nil {
			logger.Error("admin API shutdown error", "error", err)
		}
	}

	if serveErr != nil {
		logger.Error("rpc listener stopped with error", "error", serveErr)
		os.Exit(1)
	}
	logger.Info("virtrpcd stopped")
}

func buildMechanism(cfg config.AuthConfig, store credstore.Store) (auth.Mechanism, error) {
	switch strings.ToUpper(cfg.Mechanism) {
	case "", "PLAIN":
		return plain.New(store), nil
	case "GSSAPI":
		return kerberos.NewProvider(kerberos.Config{
			KeytabPath:       cfg.Kerberos.KeytabPath,
			ServicePrincipal: cfg.Kerberos.ServicePrincipal,
			Krb5ConfPath:     cfg.Kerberos.Krb5Conf,
		})
	default:
		return nil, fmt.Errorf("unsupported auth mechanism %q", cfg.Mechanism)
	}
}

func loadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	go func() {
		logger.Info("metrics server listening", "address", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
