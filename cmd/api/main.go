package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/app"
	"github.com/jun/teledrive/internal/config"
	"github.com/jun/teledrive/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal("invalid configuration", zap.Error(err))
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		logging.L().Fatal("failed to init logger", zap.Error(err))
	}
	defer logging.Sync()

	application, err := app.NewApp(context.Background(), cfg)
	if err != nil {
		logging.L().Fatal("failed to initialize app", zap.Error(err))
	}
	lambda.Start(application.HandleRequest)
}
