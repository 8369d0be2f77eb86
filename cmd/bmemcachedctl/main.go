// Command bmemcachedctl connects to a memcached server list and runs a
// mixed get/set/delete workload against it while serving Prometheus
// metrics and a liveness probe, mirroring the reference application's
// cmd/vaultaire/main.go shutdown handling (signal-aware, bounded grace
// period) adapted from an HTTP gateway's startup sequence to a workload
// driver's.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	bmemcached "github.com/jaysonsantos/gobmemcached"
	"github.com/jaysonsantos/gobmemcached/internal/config"
	"github.com/jaysonsantos/gobmemcached/internal/logger"
	"github.com/jaysonsantos/gobmemcached/internal/transport"
	"github.com/jaysonsantos/gobmemcached/internal/valuecodec"
)

func main() {
	var (
		servers       = flag.String("servers", os.Getenv("BMEMCACHED_SERVERS"), "comma-separated server list")
		username      = flag.String("username", os.Getenv("BMEMCACHED_USERNAME"), "SASL PLAIN username")
		password      = flag.String("password", os.Getenv("BMEMCACHED_PASSWORD"), "SASL PLAIN password")
		routing       = flag.String("routing", "replicating", "routing strategy: replicating or hashring")
		rps           = flag.Float64("rate", 0, "outbound requests per second per server (0 disables limiting)")
		keys          = flag.Int("keys", 1000, "number of distinct keys the workload cycles through")
		metricsAddr   = flag.String("metrics-addr", ":9090", "address to serve /metrics and /healthz on")
		logLevel      = flag.String("log-level", "info", "log level: debug, info, warn, error")
		workloadDelay = flag.Duration("workload-interval", 50*time.Millisecond, "delay between workload operations")
		configPath    = flag.String("config", "", "optional YAML config file; flags and env take precedence")
	)
	flag.Parse()
	explicitFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicitFlags[f.Name] = true })

	log, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bmemcachedctl: invalid log level: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	serverList := splitAndTrim(*servers)
	user, pass, routingStrategy := *username, *password, *routing
	var cfg *config.Config
	if *configPath != "" {
		var cfgErr error
		cfg, cfgErr = config.Load(*configPath)
		if cfgErr != nil {
			log.Fatal("loading config file", zap.Error(cfgErr))
		}
		if len(serverList) == 0 {
			serverList = cfg.Servers
		}
		if user == "" {
			user, pass = cfg.Username, cfg.Password
		}
		if !explicitFlags["routing"] && cfg.Routing != "" {
			routingStrategy = cfg.Routing
		}
	}
	if len(serverList) == 0 {
		log.Fatal("no servers configured; pass -servers, set BMEMCACHED_SERVERS, or use -config")
	}

	opts := []bmemcached.Option{
		bmemcached.WithRouting(routingStrategy),
		bmemcached.WithLogger(log),
	}
	if user != "" {
		opts = append(opts, bmemcached.WithAuth(user, pass))
	}
	switch {
	case *rps > 0:
		opts = append(opts, bmemcached.WithRateLimit(*rps, int(*rps)+1))
	case cfg != nil && cfg.RateLimit != nil:
		opts = append(opts, bmemcached.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	if cfg != nil {
		opts = append(opts, bmemcached.WithSocketTimeout(cfg.SocketTimeout))
		if comp := compressorFor(cfg.Compression.Algorithm); comp != nil {
			opts = append(opts, bmemcached.WithCompressor(comp))
		}
		opts = append(opts, bmemcached.WithCompressLevel(cfg.CompressLevel()))
		if cfg.TLS != nil {
			opts = append(opts, bmemcached.WithTLS(&transport.TLSConfig{
				ServerName:         cfg.TLS.ServerName,
				CAFile:             cfg.TLS.CAFile,
				CertFile:           cfg.TLS.CertFile,
				KeyFile:            cfg.TLS.KeyFile,
				InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			}))
		}
	}

	client, err := bmemcached.New(serverList, opts...)
	if err != nil {
		log.Fatal("building client", zap.Error(err))
	}
	defer func() { _ = client.DisconnectAll() }()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: *metricsAddr, Handler: newAdminRouter()}
	go func() {
		log.Info("serving metrics and health", zap.String("addr", *metricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", zap.Error(err))
		}
	}()

	runID := uuid.New().String()
	log.Info("starting workload",
		zap.String("run_id", runID),
		zap.Strings("servers", serverList),
		zap.String("routing", routingStrategy),
		zap.Int("keys", *keys))

	done := make(chan struct{})
	go func() {
		defer close(done)
		runWorkload(shutdownCtx, log, client, runID, *keys, *workloadDelay)
	}()

	<-shutdownCtx.Done()
	log.Info("shutting down")

	graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer graceCancel()
	_ = srv.Shutdown(graceCtx)
	<-done
}

// runWorkload cycles through a bounded key space issuing set/get/delete
// operations until ctx is cancelled, tagging every value with runID so a
// concurrently running instance's keys are distinguishable.
func runWorkload(ctx context.Context, log *zap.Logger, client *bmemcached.Client, runID string, keyCount int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		key := fmt.Sprintf("bmemcachedctl:%s:%d", runID, rand.Intn(keyCount))
		switch rand.Intn(3) {
		case 0:
			if _, err := client.Set(ctx, key, time.Now().String(), 60); err != nil {
				log.Warn("set failed", zap.String("key", key), zap.Error(err))
			}
		case 1:
			if _, _, err := client.Get(ctx, key); err != nil {
				log.Warn("get failed", zap.String("key", key), zap.Error(err))
			}
		case 2:
			if _, err := client.Delete(ctx, key); err != nil {
				log.Warn("delete failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// compressorFor maps a config file's compression.algorithm string to the
// Compressor it names. "none"/"" leaves the client's default (deflate) in
// place and relies on WithCompressLevel(0) to disable compression instead,
// matching internal/config.CompressionConfig's own "nil level -> default,
// 0 -> disabled" convention.
func compressorFor(algorithm string) valuecodec.Compressor {
	switch algorithm {
	case "snappy":
		return valuecodec.SnappyCompressor{}
	case "deflate":
		return valuecodec.DeflateCompressor{}
	default:
		return nil
	}
}

func newAdminRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
