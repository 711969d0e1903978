package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/randomic/internal/adapters/http"
	"github.com/dkeye/randomic/internal/adapters/media"
	"github.com/dkeye/randomic/internal/adapters/prefs"
	"github.com/dkeye/randomic/internal/adapters/rtc"
	signalch "github.com/dkeye/randomic/internal/adapters/signal"
	"github.com/dkeye/randomic/internal/app/orch"
	"github.com/dkeye/randomic/internal/clock"
	"github.com/dkeye/randomic/internal/config"
	"github.com/dkeye/randomic/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	clk := clock.Real()

	o := orch.New(cfg.Call, orch.Deps{
		Media:   media.NewManager(media.SilenceDevice{}),
		Prefs:   prefs.NewStore(cfg.PrefsPath),
		Clock:   clk,
		Metrics: m,
	})
	channel := signalch.NewChannel(cfg.Signal, o, clk, m)
	peer, err := rtc.NewPeer(cfg.Rendezvous, o, clk, m, rtc.WithSink(&rtc.CountingSink{}))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create transport peer")
	}
	o.Bind(channel, peer)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.Run(gctx) })
	g.Go(func() error { return channel.Run(gctx) })
	g.Go(func() error { return peer.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("randomic client started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("client stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Client exited gracefully")
}
