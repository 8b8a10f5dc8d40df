package app

import (
	"context"
	"strings"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
)

// ExecuteSetTokenCommand stores the resolver auth token in the configuration file.
func ExecuteSetTokenCommand(ctx context.Context, cfg *config.Config, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		logger.Fatal(ctx, "Auth token cannot be empty")
	}

	cfg.AuthToken = token

	if err := config.SaveConfig(cfg); err != nil {
		logger.Fatalf(ctx, "Failed to save auth token: %v", err)
	}

	logger.Info(ctx, "Auth token saved to the configuration file")
}
