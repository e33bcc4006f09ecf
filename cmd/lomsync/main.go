package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aryankumar/lomsync/internal/cli"
	"github.com/aryankumar/lomsync/internal/util"
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx := util.SetupSignalHandler(slog.Default())

	// Execute the CLI
	if err := cli.Execute(ctx); err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", util.FriendlyError(err))
		os.Exit(1)
	}
}
