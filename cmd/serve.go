package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hungryunicorn/concierge/internal/booking"
	"github.com/hungryunicorn/concierge/internal/config"
	"github.com/hungryunicorn/concierge/internal/dialogue"
	"github.com/hungryunicorn/concierge/internal/server"
	"github.com/hungryunicorn/concierge/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := initConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := session.NewStore(ctx, session.Options{
		MaxSessions: cfg.Session.MaxSessions,
		Timeout:     time.Duration(cfg.Session.Timeout),
		RedisAddr:   cfg.Redis.Addr,
		RedisPass:   cfg.Redis.Password,
	})
	defer store.Close()
	go store.StartSweeper(ctx)

	manager := dialogue.NewManager(store, buildExtractor(cfg), newOrchestrator(cfg))
	srv := server.New(cfg.Port, manager, store, appVersion)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newOrchestrator(cfg *config.Config) *booking.Orchestrator {
	client := booking.NewClient(cfg.Booking.APIURL, cfg.Booking.Token, cfg.Booking.Restaurant)
	return booking.NewOrchestrator(client, booking.DefaultPolicy)
}
