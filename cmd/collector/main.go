package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"

	"github.com/opentrail/opentrail/internal/config"
	traceServer "github.com/opentrail/opentrail/internal/otel_server/trace/server"
	"github.com/opentrail/opentrail/internal/query_server/router"
	"github.com/opentrail/opentrail/pkg/assembler"
	"github.com/opentrail/opentrail/pkg/exporter"
	"github.com/opentrail/opentrail/pkg/exporter/elastic"
	"github.com/opentrail/opentrail/pkg/exporter/otlp"
	"github.com/opentrail/opentrail/pkg/tracer"
	"github.com/opentrail/opentrail/pkg/tracer/model"
)

// assemblerConsumer feeds ingested spans into the trace assembler.
type assemblerConsumer struct {
	assembler *assembler.Assembler
}

func (c assemblerConsumer) Consume(spans []model.Span) {
	for _, span := range spans {
		c.assembler.Record(span)
	}
}

// sinkConsumer forwards ingested spans onto the export pipeline.
type sinkConsumer struct {
	processor tracer.SpanProcessor
}

func (c sinkConsumer) Consume(spans []model.Span) {
	for _, span := range spans {
		c.processor.OnEnd(span)
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	traceAssembler, err := assembler.New(
		assembler.Config{
			MaxSpans:     cfg.Collector.MaxSpans,
			OrphanWindow: cfg.Collector.GetOrphanWindowDuration(),
			Retention:    cfg.Collector.GetRetentionDuration(),
		},
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create trace assembler", zap.Error(err))
	}
	defer traceAssembler.Close()

	sink := buildExporter(cfg, logger)
	metrics := exporter.NewMetrics(prometheus.DefaultRegisterer)
	processor := exporter.NewBatchProcessor(
		sink,
		exporter.BatchConfig{
			QueueSize:     cfg.Batch.QueueSize,
			BatchSize:     cfg.Batch.BatchSize,
			FlushInterval: cfg.Batch.GetFlushIntervalDuration(),
			MaxRetries:    cfg.Batch.MaxRetries,
			RetryBackoff:  cfg.Batch.GetRetryBackoffDuration(),
		},
		logger,
		metrics,
	)

	listener, err := net.Listen("tcp", cfg.Collector.GRPCAddr)
	if err != nil {
		logger.Fatal("Failed to listen", zap.String("addr", cfg.Collector.GRPCAddr), zap.Error(err))
	}

	srv := grpc.NewServer()
	traceServiceServer := traceServer.NewTraceServiceServerImpl(
		logger,
		assemblerConsumer{assembler: traceAssembler},
		sinkConsumer{processor: processor},
	)
	protoTrace.RegisterTraceServiceServer(srv, traceServiceServer)

	go func() {
		logger.Info("gRPC service started, listening for OpenTelemetry traces...",
			zap.String("addr", cfg.Collector.GRPCAddr))
		if err := srv.Serve(listener); err != nil {
			logger.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", router.CreateRouter(context.Background(), traceAssembler, logger))
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: cfg.Collector.HTTPAddr, Handler: mux}

	go func() {
		logger.Info("Starting query server", zap.String("addr", cfg.Collector.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down collector")

	srv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if err := processor.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down span processor", zap.Error(err))
	}
}

func buildExporter(cfg *config.Config, logger *zap.Logger) exporter.Exporter {
	switch cfg.Exporter.Kind {
	case "otlp":
		otlpExporter, err := otlp.NewExporter(
			cfg.Exporter.Otlp.Endpoint,
			cfg.Service.Name,
			cfg.Exporter.Otlp.GetTimeoutDuration(),
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to create OTLP exporter", zap.Error(err))
		}
		return otlpExporter
	case "elastic":
		es, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Exporter.Elastic.Addresses,
		})
		if err != nil {
			logger.Fatal("Failed to create elasticsearch client", zap.Error(err))
		}
		if err := elastic.NewBootstrapper(es, logger).Bootstrap(); err != nil {
			logger.Fatal("Failed to bootstrap elasticsearch", zap.Error(err))
		}
		return elastic.NewExporter(es, logger)
	default:
		return exporter.NewConsoleExporter(os.Stdout)
	}
}
