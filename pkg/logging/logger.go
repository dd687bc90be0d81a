package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger creates a zap logger appropriate for the given environment.
// Production environments get JSON output at info level; everything else
// gets the human-readable development console at debug level.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case "production", "staging":
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}
