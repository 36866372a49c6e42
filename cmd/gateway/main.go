package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liquorice-gateway/gateway/internal/audit"
	"github.com/liquorice-gateway/gateway/internal/health"
	"github.com/liquorice-gateway/gateway/internal/logging"
	"github.com/liquorice-gateway/gateway/internal/metrics"
	"github.com/liquorice-gateway/gateway/internal/server"
	"github.com/liquorice-gateway/gateway/internal/settings"
	"github.com/liquorice-gateway/gateway/internal/supervisor"
)

func main() {
	cfg, err := settings.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	logger := logging.New()

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	auditStore, err := audit.Open("gateway_audit.db")
	if err != nil {
		log.Fatalf("Failed to open audit database: %v", err)
	}
	defer auditStore.Close()

	sup, err := supervisor.New(cfg, met, auditStore, logger)
	if err != nil {
		log.Fatalf("Failed to wire gateway components: %v", err)
	}

	healthSvc := health.NewService()
	healthSvc.AddChecker("quoting", health.NewCounterHealthChecker(met.RFQsTotal, 60*time.Second, "status", string(metrics.QuoteSent)))

	srv := server.New(8080, healthSvc, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("shutting down")
	cancel()
	sup.Stop()
}
