// Portfolio API as an AWS Lambda function behind API Gateway.
package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/etk18/portfolio/internal/app"
	"github.com/etk18/portfolio/internal/config"
	"github.com/etk18/portfolio/internal/serverless"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Only /tmp is writable inside Lambda.
	if os.Getenv("DB_PATH") == "" {
		_ = os.Setenv("DB_PATH", "/tmp/portfolio.db")
	}
	if os.Getenv("CONVERSATION_LOG_ENABLED") == "" {
		_ = os.Setenv("CONVERSATION_LOG_ENABLED", "false")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	lambda.Start(serverless.Handler(application.Handler()))
}
