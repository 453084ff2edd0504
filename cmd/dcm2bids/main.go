package main

import (
	"errors"
	"log/slog"
	"os"

	"dcm2bids/internal/slogutil"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errAcquisitionsFailed) {
			logger := slogutil.NewLogger(os.Stderr, slog.LevelInfo)
			logger.Error("Command execution failed", "error", err.Error())
		}
		os.Exit(1)
	}
}
