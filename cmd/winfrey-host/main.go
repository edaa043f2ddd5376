// Command winfrey-host runs the authoritative WinfreyEdit server: it
// loads a document, exposes it over NATS request/reply and
// publish/subscribe subjects, and periodically snapshots it back to
// disk.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/config"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/logging"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/metrics"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/server"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/transport"
)

func main() {
	file := flag.String("file", "", "path to the document to host (overrides WINFREY_DOCUMENT_PATH)")
	natsURL := flag.String("nats", "", "NATS server URL (overrides WINFREY_NATS_URL)")
	interactive := flag.String("interactive", "", "interactive subject (overrides WINFREY_INTERACTIVE_SUBJECT)")
	broadcast := flag.String("broadcast", "", "broadcast subject (overrides WINFREY_BROADCAST_SUBJECT)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on (overrides WINFREY_METRICS_ADDR)")
	flag.Parse()

	cfg, err := config.LoadHostConfig()
	if err != nil {
		os.Stderr.WriteString("winfrey-host: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *file != "" {
		cfg.DocumentPath = *file
	}
	if *natsURL != "" {
		cfg.NATSUrl = *natsURL
	}
	if *interactive != "" {
		cfg.InteractiveSubject = *interactive
	}
	if *broadcast != "" {
		cfg.BroadcastSubject = *broadcast
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if cfg.DocumentPath == "" {
		os.Stderr.WriteString("winfrey-host: -file (or WINFREY_DOCUMENT_PATH) is required\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:   logging.Level(cfg.LogLevel),
		Format:  logging.Format(cfg.LogFormat),
		Service: "winfrey-host",
	})
	cfg.LogConfig(logger)

	m := metrics.New(logger)

	conn, err := transport.Dial(cfg.NATSUrl, transport.DefaultOptions(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer conn.Close()

	coord, err := server.New(server.Config{
		DocumentPath:       cfg.DocumentPath,
		InteractiveSubject: cfg.InteractiveSubject,
		BroadcastSubject:   cfg.BroadcastSubject,
		InitialBatchDelay:  cfg.InitialBatchDelay,
		LatencyMargin:      cfg.LatencyMargin,
		SnapshotInterval:   cfg.SnapshotInterval,
	}, conn, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize server coordinator")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server coordinator")
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	go m.StartResourceSampler(ctx, 15*time.Second)

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := coord.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error during coordinator shutdown")
	}
}
