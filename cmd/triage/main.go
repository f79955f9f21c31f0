package main

import (
	"context"

	"github.com/aretw0/triage/internal/cli"
)

func main() {
	ctx := cli.NewSignalContext(context.Background())
	defer ctx.Cancel()
	Execute(ctx)
}
