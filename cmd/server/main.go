package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"

	"lob/api/grpcserver"
	"lob/domain/orderbook"
	"lob/infra/config"
	"lob/infra/journal"
	"lob/infra/kafka"
	"lob/infra/log"
	"lob/infra/metrics"
	"lob/infra/outbox"
	"lob/jobs/broadcaster"
	"lob/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := log.New(config.Default())
		l.Fatal().Err(err).Msg("config")
	}
	logger := log.New(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---------------- Metrics ----------------

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	// ---------------- Journal ----------------

	svcCfg := service.Config{
		Instrument: cfg.Instrument,
		QueueSize:  cfg.Engine.QueueSize,
		Metrics:    m,
		Logger:     logger,
	}

	if cfg.Journal.Dir != "" {
		j, err := journal.Open(journal.Config{Dir: cfg.Journal.Dir, SegmentSize: cfg.Journal.SegmentSize})
		if err != nil {
			logger.Fatal().Err(err).Msg("journal open failed")
		}
		defer j.Close()
		svcCfg.Journal = j
		svcCfg.JournalSeq = j.LastSeq()
	}

	// ---------------- Outbox ----------------

	var box *outbox.Outbox
	if cfg.Outbox.Dir != "" {
		box, err = outbox.Open(cfg.Outbox.Dir, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("outbox open failed")
		}
		defer box.Close()

		last, err := box.LastSeq()
		if err != nil {
			logger.Fatal().Err(err).Msg("outbox scan failed")
		}
		svcCfg.Sink = box
		svcCfg.EventSeq = last
	}

	// ---------------- Engine ----------------

	svc := service.NewOrderService(orderbook.NewOrderBook(), svcCfg)

	var wg sync.WaitGroup
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		_ = svc.Run(ctx)
	}()

	// ---------------- Broadcaster ----------------

	if cfg.Kafka.Enabled && box != nil {
		pub, err := newPublisher(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("kafka publisher")
		}
		bc := broadcaster.New(box, pub, cfg.Instrument, cfg.Kafka.PollInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer bc.Close()
			if err := bc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("broadcaster exited")
			}
		}()
	}

	// ---------------- Metrics HTTP ----------------

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPC.Addr).Msg("listen failed")
	}

	api := grpcserver.NewServer(svc, logger)
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(api.UnaryLogger()))
	grpcserver.Register(grpcSrv, api)

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	logger.Info().
		Str("grpc", cfg.GRPC.Addr).
		Str("metrics", cfg.Metrics.Addr).
		Bool("journal", svcCfg.Journal != nil).
		Bool("outbox", box != nil).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("order book running")

	if err := grpcSrv.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("gRPC server exited")
	}

	// ---------------- Shutdown ----------------

	cancel()
	<-engineDone
	wg.Wait()
	if metricsSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		done()
	}
	logger.Info().Msg("shutdown complete")
}

func newPublisher(cfg config.Config) (broadcaster.Publisher, error) {
	switch cfg.Kafka.Client {
	case config.ClientKafkaGo:
		return kafka.NewWriterPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	case config.ClientSarama, "":
		return kafka.NewSaramaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	default:
		return nil, errors.Newf("unknown kafka client %q", cfg.Kafka.Client)
	}
}
