package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/logging"
	"github.com/jun/teledrive/internal/model"
	"github.com/jun/teledrive/internal/session"
	"github.com/jun/teledrive/internal/vfs"
)

const (
	// SessionCookie holds the signed session token.
	SessionCookie = "token"
	// LoginCookie holds the pending login between send-code and login.
	LoginCookie = "login_state"
)

var (
	errUnauthorized = errors.New("not authenticated")
	errBadRequest   = errors.New("bad request")
)

// GetHeader is a case-insensitive header lookup. API Gateway passes
// headers with whatever casing the client used.
func GetHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, v := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return strings.Join(v, "; ")
		}
	}
	return ""
}

// getCookie returns the value of the named cookie, or "".
func getCookie(req events.APIGatewayProxyRequest, name string) string {
	raw := GetHeader(req, "Cookie")
	if raw == "" {
		return ""
	}
	cookies, err := http.ParseCookie(raw)
	if err != nil {
		// Fall back to a lenient scan; browsers send cookies we did not set.
		for _, part := range strings.Split(raw, ";") {
			if v, ok := strings.CutPrefix(strings.TrimSpace(part), name+"="); ok {
				return v
			}
		}
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// GetToken extracts the session token from the Authorization header or the
// session cookie.
func GetToken(req events.APIGatewayProxyRequest) string {
	if v, ok := strings.CutPrefix(GetHeader(req, "Authorization"), "Bearer "); ok && v != "" {
		return v
	}
	return getCookie(req, SessionCookie)
}

// GetSession recovers the session blob of the caller.
func GetSession(ctx context.Context, req events.APIGatewayProxyRequest, sessions *session.Manager) ([]byte, error) {
	token := GetToken(req)
	if token == "" {
		return nil, fmt.Errorf("%w: no token", errUnauthorized)
	}
	blob, err := sessions.Recover(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	return blob, nil
}

// requestBody returns the raw body, decoding base64 payloads.
func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 body", errBadRequest)
	}
	return b, nil
}

func decodeJSON(req events.APIGatewayProxyRequest, v any) error {
	body, err := requestBody(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid request body", errBadRequest)
	}
	return nil
}

func jsonResponse(status int, v any, cookies ...string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"failed to encode response"}`)
	}
	resp := events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
	if len(cookies) > 0 {
		resp.MultiValueHeaders = map[string][]string{"Set-Cookie": cookies}
	}
	return resp
}

func errorResponse(status int, msg string) events.APIGatewayProxyResponse {
	return jsonResponse(status, model.Response{Success: false, Error: msg})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, adapter.ErrNotFound), errors.Is(err, adapter.ErrNoThumbnail):
		return http.StatusNotFound
	case errors.Is(err, vfs.ErrInvalidPath), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, adapter.ErrLimitExceeded):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the error envelope. Upstream messages are
// passed through verbatim.
func fail(ctx context.Context, op string, err error) events.APIGatewayProxyResponse {
	status := statusFor(err)
	log := logging.WithContext(ctx).With(zap.String("op", op), zap.Int("status", status), zap.Error(err))
	switch status {
	case http.StatusInternalServerError:
		log.Error("request failed")
	case http.StatusUnauthorized:
		log.Debug("unauthenticated request")
	default:
		log.Info("request rejected")
	}

	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		msg = "Not authenticated"
	case http.StatusNotFound:
		msg = "File not found"
	}
	return errorResponse(status, msg)
}

// Cookies builds Set-Cookie header values.
type Cookies struct {
	Secure   bool
	SameSite string
}

// NewCookies returns the cookie policy. Deployed behind CloudFront the API
// needs SameSite=None; local development uses Lax over plain HTTP.
func NewCookies(devMode bool) Cookies {
	if devMode {
		return Cookies{Secure: false, SameSite: "Lax"}
	}
	return Cookies{Secure: true, SameSite: "None"}
}

// Set returns a cookie that lives for maxAge.
func (c Cookies) Set(name, value string, maxAge time.Duration) string {
	cookie := fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s", name, value, int(maxAge.Seconds()), c.SameSite)
	if c.Secure {
		cookie += "; Secure"
	}
	return cookie
}

// Clear returns a cookie that deletes name.
func (c Cookies) Clear(name string) string {
	return c.Set(name, "", 0)
}
