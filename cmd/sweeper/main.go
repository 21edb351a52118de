// Command sweeper runs the periodic lifecycle jobs: finalizing pending
// deletes whose deletion time has passed and expanding due autorenew
// recurrences into charges.
//
// Exit codes: 0 = clean shutdown, 1 = startup or runtime error.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/juniorpayne/registry-core/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunSweeper(ctx); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
}
