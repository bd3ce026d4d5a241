// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"log/slog"
	"os"
)

// NewLogger creates the standard Quarry service logger: JSON output to
// stderr at Info level. The logger is also installed as the process
// default so that library code falling back to slog.Default() shares
// the same sink.
func NewLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}
