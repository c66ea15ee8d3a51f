package main

import (
	"log/slog"
	"net/http"
	"os"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	docs, err := loadFixtures(os.Getenv("MOCK_FIXTURES"))
	if err != nil {
		slog.Error("Failed to load fixtures", "error", err)
		os.Exit(1)
	}

	srv := newFixtureServer(docs)
	slog.Info("Mock repository running on :8081", "documents", len(docs))
	if err := http.ListenAndServe(":8081", srv.router()); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
