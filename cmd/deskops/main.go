package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"deskops/internal/app"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (default config.yaml)")
	flag.Parse()

	application, err := app.NewApplication(*configFile)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
