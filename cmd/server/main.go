package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/adapters/httpapi"
	wssignal "github.com/visign/signaling/internal/adapters/signal"
	"github.com/visign/signaling/internal/app"
	"github.com/visign/signaling/internal/config"
	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/ice"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	conns := wssignal.NewConnRegistry()
	broadcaster := app.NewBroadcaster(conns)
	coord := core.NewCoordinator(broadcaster, cfg.Room.MaxParticipants)
	relay := app.NewRelay(coord, conns)

	staticServers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		staticServers = append(staticServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	iceProvider := ice.NewStaticProvider(staticServers, cfg.Turn.URLs, cfg.Turn.Secret, cfg.Turn.CredentialTTL)

	ctl := wssignal.NewController(cfg, coord, relay, iceProvider, conns)

	reaper := core.NewReaper(coord, cfg.Room.ReapInterval, cfg.Room.DisconnectGrace)
	go reaper.Run(ctx)

	r := httpapi.SetupRouter(ctx, cfg, coord, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
