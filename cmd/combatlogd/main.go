// Command combatlogd is the long-running core process: it tails a combat
// log directory, maintains encounter state, evaluates declarative rules,
// and serves overlay clients over a local websocket. See
// internal/app.Run for the actual wiring.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"combatlogd/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := app.Config{
		ListenAddr:     os.Getenv("COMBATLOGD_LISTEN_ADDR"),
		LogDirOverride: os.Getenv("COMBATLOGD_LOG_DIR"),
	}

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
