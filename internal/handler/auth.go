package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/adapter/memory"
	"github.com/jun/teledrive/internal/auth"
	"github.com/jun/teledrive/internal/logging"
	"github.com/jun/teledrive/internal/metrics"
	"github.com/jun/teledrive/internal/model"
	"github.com/jun/teledrive/internal/session"
	"github.com/jun/teledrive/internal/staging"
	"github.com/jun/teledrive/internal/vfs"
)

// AuthHandler handles login requests.
type AuthHandler struct {
	flow        *auth.Flow
	sessions    *session.Manager
	demo        adapter.StorageProvider
	cookies     Cookies
	frontendURL string
	uploadDir   string
}

// NewAuthHandler creates a new AuthHandler. demo serves demo accounts and
// may be nil to disable demo login.
func NewAuthHandler(flow *auth.Flow, sessions *session.Manager, demo adapter.StorageProvider, cookies Cookies, frontendURL, uploadDir string) *AuthHandler {
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	return &AuthHandler{
		flow:        flow,
		sessions:    sessions,
		demo:        demo,
		cookies:     cookies,
		frontendURL: frontendURL,
		uploadDir:   uploadDir,
	}
}

// SendCode requests a login code and stores the pending login in a
// short-lived cookie.
func (h *AuthHandler) SendCode(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body model.SendCodeRequest
	if err := decodeJSON(req, &body); err != nil {
		return fail(ctx, "send_code", err), nil
	}

	code, err := h.flow.SendCode(ctx, body.PhoneNumber)
	if err != nil {
		if errors.Is(err, auth.ErrPhoneRequired) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return fail(ctx, "send_code", err), nil
	}

	state, err := h.sessions.IssueKind(ctx, session.KindLogin, code.Pending)
	if err != nil {
		return fail(ctx, "send_code", err), nil
	}
	cookie := h.cookies.Set(LoginCookie, state, h.sessions.TTL(session.KindLogin))
	logging.WithContext(ctx).Info("login code sent", zap.Stringer("step", code.Step))
	return jsonResponse(http.StatusOK, model.SendCodeResponse{
		Success:       true,
		PhoneCodeHash: code.PhoneCodeHash,
		Step:          code.Step.String(),
	}, cookie), nil
}

// Login verifies the code (and password) and sets the session cookie.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body model.LoginRequest
	if err := decodeJSON(req, &body); err != nil {
		return fail(ctx, "login", err), nil
	}

	// A missing or stale pending login still gets a try on a fresh session;
	// the upstream rejects the code hash if it cannot be used.
	var pending []byte
	if state := getCookie(req, LoginCookie); state != "" {
		blob, err := h.sessions.RecoverKind(ctx, session.KindLogin, state)
		if err != nil {
			logging.WithContext(ctx).Info("ignoring pending login", zap.Error(err))
		} else {
			pending = blob
		}
	}

	res := h.flow.Verify(ctx, pending, adapter.Credentials{
		PhoneNumber:   body.PhoneNumber,
		PhoneCode:     body.PhoneCode,
		PhoneCodeHash: body.PhoneCodeHash,
		Password:      body.Password,
	})
	metrics.RecordLogin(res.Outcome.String())
	logging.WithContext(ctx).Info("login attempt",
		zap.Stringer("outcome", res.Outcome),
		zap.Stringer("step", res.Step),
	)

	switch res.Outcome {
	case auth.OutcomeSuccess:
		token, err := h.sessions.Issue(ctx, res.Session)
		if err != nil {
			return fail(ctx, "login", err), nil
		}
		return jsonResponse(http.StatusOK, model.Response{Success: true},
			h.cookies.Set(SessionCookie, token, h.sessions.TTL(session.KindSession)),
			h.cookies.Clear(LoginCookie),
		), nil

	case auth.OutcomeSecondFactorRequired:
		var cookies []string
		if res.Pending != nil {
			state, err := h.sessions.IssueKind(ctx, session.KindLogin, res.Pending)
			if err != nil {
				return fail(ctx, "login", err), nil
			}
			cookies = append(cookies, h.cookies.Set(LoginCookie, state, h.sessions.TTL(session.KindLogin)))
		}
		return jsonResponse(http.StatusBadRequest, model.Response{
			Success:          false,
			Error:            res.Reason,
			PasswordRequired: true,
			Step:             res.Step.String(),
		}, cookies...), nil

	default:
		switch {
		case errors.Is(res.Err, adapter.ErrPasswordInvalid):
			return jsonResponse(http.StatusBadRequest, model.Response{
				Success:          false,
				Error:            res.Reason,
				PasswordRequired: true,
				Step:             res.Step.String(),
			}), nil
		case errors.Is(res.Err, auth.ErrPhoneRequired), errors.Is(res.Err, auth.ErrCodeRequired):
			return fail(ctx, "login", fmt.Errorf("%w: %v", errBadRequest, res.Err)), nil
		}
		return fail(ctx, "login", res.Err), nil
	}
}

const welcomeText = `Welcome to teledrive!

Files you upload are stored as attachments in your Telegram Saved Messages.
Folders are empty marker messages, so nothing here depends on this server.

This demo account keeps up to 50 files of 256 KiB for 24 hours.
`

// DemoLogin creates a demo account, seeds it and redirects to the front end.
func (h *AuthHandler) DemoLogin(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if h.demo == nil {
		return errorResponse(http.StatusNotFound, "Demo login is disabled"), nil
	}

	blob := memory.NewSession()
	storage, err := h.demo.GetAdapter(ctx, blob)
	if err != nil {
		return fail(ctx, "demo_login", err), nil
	}

	if err := h.seed(ctx, storage); err != nil {
		// The account is usable without its sample content.
		logging.WithContext(ctx).Warn("failed to seed demo account", zap.Error(err))
	}

	token, err := h.sessions.Issue(ctx, blob)
	if err != nil {
		return fail(ctx, "demo_login", err), nil
	}
	metrics.RecordLogin("demo")

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?success=true", h.frontendURL),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {h.cookies.Set(SessionCookie, token, h.sessions.TTL(session.KindSession))},
		},
	}, nil
}

func (h *AuthHandler) seed(ctx context.Context, storage adapter.StorageAdapter) error {
	codec := vfs.DefaultCodec
	entries := []struct {
		path    vfs.Path
		kind    vfs.Kind
		name    string
		content string
	}{
		{"/docs", vfs.KindDirectory, codec.Placeholder, ""},
		{"/Welcome.txt", vfs.KindFile, "Welcome.txt", welcomeText},
	}
	for _, e := range entries {
		caption, err := codec.Encode(e.path, e.kind)
		if err != nil {
			return err
		}
		f, err := staging.Stage(h.uploadDir, strings.NewReader(e.content))
		if err != nil {
			return err
		}
		_, err = storage.SendFile(ctx, f.Path, e.name, caption)
		f.Release()
		if err != nil {
			return fmt.Errorf("seed %s: %w", e.path, err)
		}
	}
	return nil
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, model.Response{Success: true},
		h.cookies.Clear(SessionCookie),
		h.cookies.Clear(LoginCookie),
	), nil
}
