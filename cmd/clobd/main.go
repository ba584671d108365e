// Command clobd runs the matching pipeline described in SPEC_FULL.md: one
// or more single-market engines fed by an HTTP ingress, broadcasting
// trades over WebSocket, persisting to Postgres, and exposing Prometheus
// metrics — wired together with cobra/viper the way the teacher wired its
// TCP server's CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	tomb "gopkg.in/tomb.v2"

	"clobd/internal/config"
	"clobd/internal/engine"
	"clobd/internal/httpapi"
	"clobd/internal/metrics"
	"clobd/internal/persistence"
	"clobd/internal/ring"
	"clobd/internal/router"
	"clobd/internal/sink"
	"clobd/internal/ws"
)

var configPath string

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("clobd: fatal")
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clobd",
		Short: "Single-market limit order book matching engine",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	rtr := router.New()

	var t tomb.Tomb

	var persist sink.PersistSink = sink.NewChannelPersistSink(4096, sink.LoggingApplier)
	if cfg.PostgresDSN != "" {
		store, err := persistence.Open(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("clobd: postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(context.Background()); err != nil {
			return fmt.Errorf("clobd: migrate: %w", err)
		}
		channelSink := sink.NewChannelPersistSink(4096, store.Apply)
		persist = channelSink
		t.Go(func() error { return channelSink.Run(&t) })
	} else if cps, ok := persist.(*sink.ChannelPersistSink); ok {
		t.Go(func() error { return cps.Run(&t) })
	}

	hub := ws.NewHub(64)

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	for _, marketName := range cfg.Markets {
		id := router.MarketID(marketName)
		in := ring.New(cfg.IngressCapacity)

		engCfg := engine.Config{
			DepthPublishEvery:  cfg.DepthPublishEvery,
			BatchEvents:        cfg.BatchEvents,
			BatchBudget:        cfg.BatchBudget,
			IdleSpinIterations: cfg.IdleSpinIterations,
		}
		eng := engine.New(in, persist, hub, reg, engCfg)
		depthPub := eng.DepthPublisher()

		if err := rtr.AddMarket(id, in, depthPub); err != nil {
			return err
		}

		t.Go(func() error { return eng.Run(&t) })

		httpSrv := httpapi.NewServer(marketName, in, depthPub, reg, cfg.RateLimitRPS, cfg.RateLimitBurst)
		group := ginEngine.Group("/" + marketName)
		httpSrv.Register(group)

		log.Info().Str("market", marketName).Msg("clobd: market online")
	}

	ginEngine.GET("/ws", gin.WrapH(hub))
	ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ticker := metrics.NewConsoleTicker(reg, 5*time.Second)
	tickerCtx, cancelTicker := context.WithCancel(context.Background())
	t.Go(func() error { return ticker.Run(tickerCtx) })

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: ginEngine}
	t.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("clobd: shutdown signal received, draining")
	case <-t.Dying():
		log.Warn().Err(t.Err()).Msg("clobd: a supervised goroutine died, shutting down")
	}

	cancelTicker()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)

	t.Kill(nil)
	return t.Wait()
}
