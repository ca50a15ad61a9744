// Command docent runs the team-chat knowledge bot: it crawls documentation,
// fetches repository contents and issues, indexes channel history, and
// answers questions over the indexed knowledge.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docentbot/docent/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "docent:", err)
		os.Exit(1)
	}
}
