package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/KiboNaku/utreview-backend-sub000/cmd/ingestd/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	commands.ExecuteContext(ctx)
}
