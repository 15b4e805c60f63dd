package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hungryunicorn/concierge/internal/dialogue"
	"github.com/hungryunicorn/concierge/internal/session"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
}

// runChat runs a single-session REPL against the booking API, handy for
// trying the assistant without standing up the server.
func runChat() error {
	cfg := initConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := session.NewStore(ctx, session.Options{
		MaxSessions: 1,
	})
	defer store.Close()

	manager := dialogue.NewManager(store, buildExtractor(cfg), newOrchestrator(cfg))
	sessionID := uuid.New().String()

	fmt.Println("Welcome to " + cfg.Booking.Restaurant + "! Ask about availability or bookings. Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply, err := manager.HandleTurn(ctx, sessionID, line)
		if err != nil {
			return err
		}
		fmt.Println(reply)

		if ctx.Err() != nil {
			return nil
		}
	}
}
