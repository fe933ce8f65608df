package main

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/app"
	"github.com/jun/teledrive/internal/config"
	"github.com/jun/teledrive/internal/logging"
	"github.com/jun/teledrive/internal/metrics"
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

	server := fiber.New(fiber.Config{
		AppName:   "teledrive local API",
		BodyLimit: 100 * 1024 * 1024, // 100MB max upload
	})
	server.Use(logger.New())
	server.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Content-Type, Authorization",
		AllowCredentials: true,
	}))

	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	server.All("/*", func(c *fiber.Ctx) error {
		resp, err := application.HandleRequest(c.UserContext(), toEvent(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return writeResponse(c, resp)
	})

	logging.L().Info("starting local server", zap.String("port", cfg.Port))
	if err := server.Listen(":" + cfg.Port); err != nil {
		logging.L().Fatal("server stopped", zap.Error(err))
	}
}

// toEvent translates a fiber request into an API Gateway proxy event.
// Non-JSON bodies are base64 encoded as API Gateway does for binary media.
func toEvent(c *fiber.Ctx) events.APIGatewayProxyRequest {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})

	query := make(map[string]string)
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		query[string(k)] = string(v)
	})

	body := c.Body()
	req := events.APIGatewayProxyRequest{
		Path:                  c.Path(),
		HTTPMethod:            c.Method(),
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID: string(c.Request().Header.Peek("X-Request-ID")),
		},
	}
	if ct := string(c.Request().Header.ContentType()); ct != "" && !strings.HasPrefix(ct, "application/json") {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	}
	return req
}

func writeResponse(c *fiber.Ctx, resp events.APIGatewayProxyResponse) error {
	for k, v := range resp.Headers {
		c.Set(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			c.Response().Header.Add(k, v)
		}
	}
	c.Status(resp.StatusCode)

	if resp.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "bad response encoding")
		}
		return c.Send(body)
	}
	return c.SendString(resp.Body)
}
