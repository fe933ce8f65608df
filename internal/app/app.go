package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/adapter/memory"
	"github.com/jun/teledrive/internal/adapter/telegram"
	"github.com/jun/teledrive/internal/auth"
	appconfig "github.com/jun/teledrive/internal/config"
	"github.com/jun/teledrive/internal/crypto"
	"github.com/jun/teledrive/internal/handler"
	"github.com/jun/teledrive/internal/logging"
	"github.com/jun/teledrive/internal/metrics"
	"github.com/jun/teledrive/internal/secret"
	"github.com/jun/teledrive/internal/session"
)

// HybridProvider delegates to the demo provider for demo sessions and to
// Telegram for everything else.
type HybridProvider struct {
	telegramProvider adapter.StorageProvider
	memoryProvider   adapter.StorageProvider
}

func (h *HybridProvider) GetAdapter(ctx context.Context, blob []byte) (adapter.StorageAdapter, error) {
	if memory.IsSession(blob) {
		return h.memoryProvider.GetAdapter(ctx, blob)
	}
	if h.telegramProvider == nil {
		return nil, errors.New("telegram is not configured")
	}
	return h.telegramProvider.GetAdapter(ctx, blob)
}

// Deps are the collaborators App is built from.
type Deps struct {
	Telegram      adapter.StorageProvider
	Demo          adapter.StorageProvider
	Authenticator adapter.Authenticator
	Encryptor     crypto.Encryptor
}

// App holds the dependencies for the Lambda function.
type App struct {
	authHandler      *handler.AuthHandler
	fileHandler      *handler.FileHandler
	devMode          bool
	frontendURL      string
	apiGatewaySecret string
}

// New builds an App from resolved configuration and collaborators.
func New(cfg *appconfig.Config, deps Deps) *App {
	sessions := session.NewManager(cfg.JWTSecret, deps.Encryptor, cfg.SessionTTL)
	provider := &HybridProvider{telegramProvider: deps.Telegram, memoryProvider: deps.Demo}

	var demo adapter.StorageProvider
	if cfg.DemoLogin {
		demo = deps.Demo
	}

	return &App{
		authHandler: handler.NewAuthHandler(
			auth.NewFlow(deps.Authenticator),
			sessions,
			demo,
			handler.NewCookies(cfg.DevMode),
			cfg.FrontendURL,
			cfg.UploadTmpDir,
		),
		fileHandler: handler.NewFileHandler(provider, sessions, handler.FileOptions{
			UploadDir: cfg.UploadTmpDir,
			PageSize:  cfg.ListPageSize,
			ScanLimit: cfg.StorageScanLimit,
		}),
		devMode:          cfg.DevMode,
		frontendURL:      cfg.FrontendURL,
		apiGatewaySecret: cfg.APIGatewaySecret,
	}
}

// NewApp initializes the application dependencies from AWS and cfg.
func NewApp(ctx context.Context, cfg *appconfig.Config) (*App, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	log := logging.L()

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if cfg.DevMode {
		resolver = secret.NewEnvResolver()
		log.Info("using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		log.Info("using SSMResolver (SSM Parameter Store)")
	}
	if err := cfg.ResolveSecrets(ctx, resolver); err != nil {
		return nil, err
	}

	// Session blobs are encrypted before they are put in a token.
	var encryptor crypto.Encryptor
	if cfg.DevMode {
		encryptor = crypto.NewSecretboxEncryptor(cfg.SessionKey)
		log.Info("using SecretboxEncryptor (DEV_MODE=true)")
	} else {
		encryptor = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	}

	var dynamoClient memory.DynamoClient
	if cfg.DemoPersist {
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
		log.Info("demo accounts persisted in DynamoDB", zap.String("table", cfg.FileStoreTable))
	}
	demo := memory.NewProvider(dynamoClient, cfg.FileStoreTable)

	deps := Deps{Demo: demo, Encryptor: encryptor}
	if cfg.TelegramEnabled() {
		tp := telegram.NewProvider(cfg.TelegramAPIID, cfg.TelegramAPIHash, logging.Named("mtproto"))
		deps.Telegram = tp
		deps.Authenticator = tp.Authenticator()
	}
	if cfg.DevMode || deps.Authenticator == nil {
		deps.Authenticator = memory.NewAuthenticator(cfg.DemoPassword)
		log.Info("using demo Authenticator", zap.String("code", memory.DefaultCode))
	}

	return New(cfg, deps), nil
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	requestID := req.RequestContext.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, requestID)

	route, resp := app.route(ctx, req)
	resp = app.corsResponse(resp)
	resp.Headers["X-Request-ID"] = logging.GetRequestID(ctx)

	metrics.RecordHTTPRequest(req.HTTPMethod, route, resp.StatusCode, time.Since(start))
	logging.WithContext(ctx).Info("request completed",
		zap.String("method", req.HTTPMethod),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// route dispatches req and returns a route label for metrics.
func (app *App) route(ctx context.Context, req events.APIGatewayProxyRequest) (string, events.APIGatewayProxyResponse) {
	path := req.Path
	method := req.HTTPMethod

	// CORS Preflight
	if method == http.MethodOptions {
		return "preflight", events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	}

	// Security: Verify Request Origin (CloudFront only)
	if !app.devMode && app.apiGatewaySecret != "" {
		if handler.GetHeader(req, "X-Origin-Verify") != app.apiGatewaySecret {
			logging.WithContext(ctx).Warn("missing or invalid X-Origin-Verify header")
			return "forbidden", events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	path = strings.TrimPrefix(path, "/api")
	if path == "" {
		path = "/"
	}
	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	switch {
	case path == "/ping" && method == http.MethodGet:
		return "ping", events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Body:       `{"status":"ok"}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}

	// /auth
	case path == "/auth/send-code" && method == http.MethodPost:
		return "auth/send-code", must(app.authHandler.SendCode(ctx, req))
	case path == "/auth/login" && method == http.MethodPost:
		return "auth/login", must(app.authHandler.Login(ctx, req))
	case path == "/auth/demo-login" && method == http.MethodGet:
		return "auth/demo-login", must(app.authHandler.DemoLogin(ctx, req))
	case path == "/auth/logout" && method == http.MethodPost:
		return "auth/logout", must(app.authHandler.Logout(ctx, req))

	// /files
	case path == "/files" && method == http.MethodGet:
		return "files", must(app.fileHandler.List(ctx, req))
	case path == "/files/upload" && method == http.MethodPost:
		return "files/upload", must(app.fileHandler.Upload(ctx, req))
	case path == "/files/delete" && method == http.MethodPost:
		return "files/delete", must(app.fileHandler.Delete(ctx, req))
	case path == "/files/edit" && method == http.MethodPost:
		return "files/edit", must(app.fileHandler.Edit(ctx, req))
	case strings.HasPrefix(path, "/files/preview/") && method == http.MethodGet:
		req.PathParameters["id"] = strings.Trim(strings.TrimPrefix(path, "/files/preview/"), "/")
		return "files/preview", must(app.fileHandler.Preview(ctx, req))
	case strings.HasPrefix(path, "/files/download/") && method == http.MethodGet:
		req.PathParameters["id"] = strings.Trim(strings.TrimPrefix(path, "/files/download/"), "/")
		return "files/download", must(app.fileHandler.Download(ctx, req))

	case path == "/folders/create" && method == http.MethodPost:
		return "folders/create", must(app.fileHandler.CreateFolder(ctx, req))
	case path == "/storage" && method == http.MethodGet:
		return "storage", must(app.fileHandler.Storage(ctx, req))
	}

	return "not_found", events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.frontendURL
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, ignoring the error.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		logging.L().Error("handler error", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
