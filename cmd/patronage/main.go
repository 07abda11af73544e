package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/patronage-dev/patronage/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := app.New()
	if err := app.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Donation collection failed")
		zap.L().Fatal("Donation collection failed: ", zap.Error(err))
	}

	zap.L().Info("Donation collection finished")
}
