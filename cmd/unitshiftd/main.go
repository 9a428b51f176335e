package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/unitshift/internal/async"
	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core"
	coreasync "github.com/joseph-ayodele/unitshift/internal/core/async"
	"github.com/joseph-ayodele/unitshift/internal/ingest"
	repo "github.com/joseph-ayodele/unitshift/internal/repository"
)

const (
	shutdownTimeout = 2 * time.Minute
	healthInterval  = 30 * time.Second
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Run.LogFormat, cfg.Run.Debug)

	v := common.NewValidator().
		Field("replacement_digit", cfg.Run.ReplacementDigit, common.Digit).
		Field("watch_dir", cfg.Server.WatchDir, common.Required, common.ExistingDir).
		Field("output_dir", cfg.Run.OutputDir, common.Required)
	if v.HasErrors() {
		logger.Error("invalid configuration", "error", v.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ledger, drv, cleanup, err := repo.InitLedger(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	handlers, err := core.DefaultHandlers(cfg.Automation, cfg.Run.ReplacementDigit, logger)
	if err != nil {
		return err
	}
	processor, err := core.NewProcessor(logger, cfg.Run.ReplacementDigit, handlers, core.WithLedger(ledger))
	if err != nil {
		return err
	}

	// Files that fail are forgotten so the next write retries them.
	seen := ingest.NewSeen()
	queue := coreasync.NewProcessorQueue(processor, cfg.Run.OutputDir, logger,
		coreasync.WithQueueSize(512),
		coreasync.WithResultHook(func(job async.Job, res core.FileResult, err error) {
			if err != nil || !res.Succeeded() {
				seen.Forget(job.Path)
			}
		}),
	)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		queue.Shutdown(ctx)
		return common.ConfigFault("listen on "+addr, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	// Reflection for grpcurl
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)

	paths, watchErrs, err := ingest.StartWatcher(gctx, ingest.WatchConfig{
		Roots:       []string{cfg.Server.WatchDir},
		Exclude:     []string{cfg.Run.OutputDir},
		InitialScan: true,
		Debounce:    cfg.Server.Debounce,
		Logger:      logger,
	})
	if err != nil {
		_ = lis.Close()
		queue.Shutdown(ctx)
		return common.ConfigFault("watch "+cfg.Server.WatchDir, err)
	}

	g.Go(func() error {
		for path := range paths {
			unchanged, err := seen.Unchanged(path)
			if err != nil {
				logger.Warn("cannot hash file", "path", path, "error", err)
				continue
			}
			if unchanged {
				logger.Debug("file unchanged, skipping", "path", path)
				continue
			}
			err = queue.Enqueue(gctx, async.Job{Path: path, SubmittedAt: time.Now(), TraceID: uuid.NewString()})
			if errors.Is(err, async.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		for err := range watchErrs {
			logger.Warn("watch error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				status := healthpb.HealthCheckResponse_SERVING
				if err := repo.HealthCheck(gctx, drv, cfg.Database.DialTimeout, logger); err != nil && gctx.Err() == nil {
					status = healthpb.HealthCheckResponse_NOT_SERVING
				}
				healthServer.SetServingStatus("", status)
			}
		}
	})

	g.Go(func() error {
		logger.Info("unitshiftd listening", "addr", addr, "watch_dir", cfg.Server.WatchDir, "output_dir", cfg.Run.OutputDir)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		queue.Shutdown(sctx)
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
