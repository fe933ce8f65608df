package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/crypto"
	"github.com/jun/teledrive/internal/session"
	"github.com/jun/teledrive/internal/vfs"
)

func TestGetToken(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"lowercase header", map[string]string{"authorization": "Bearer abc"}, "abc"},
		{"cookie", map[string]string{"Cookie": "theme=dark; token=xyz"}, "xyz"},
		{"bearer wins", map[string]string{"Authorization": "Bearer abc", "Cookie": "token=xyz"}, "abc"},
		{"lenient cookie", map[string]string{"Cookie": `bad"cookie; token=xyz`}, "xyz"},
		{"none", map[string]string{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := GetToken(events.APIGatewayProxyRequest{Headers: tc.headers})
			if got != tc.want {
				t.Errorf("GetToken() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewManager("s", crypto.NewSecretboxEncryptor("k"), 0)
	token, err := sessions.Issue(ctx, []byte("blob"))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	blob, err := GetSession(ctx, events.APIGatewayProxyRequest{Headers: map[string]string{"Cookie": "token=" + token}}, sessions)
	if err != nil || string(blob) != "blob" {
		t.Fatalf("GetSession = %q, %v", blob, err)
	}

	_, err = GetSession(ctx, events.APIGatewayProxyRequest{Headers: map[string]string{"Cookie": "token=" + token + "x"}}, sessions)
	if !errors.Is(err, errUnauthorized) {
		t.Errorf("Expected errUnauthorized for tampered token, got %v", err)
	}

	_, err = GetSession(ctx, events.APIGatewayProxyRequest{}, sessions)
	if !errors.Is(err, errUnauthorized) {
		t.Errorf("Expected errUnauthorized without token, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", errUnauthorized), http.StatusUnauthorized},
		{adapter.ErrNotFound, http.StatusNotFound},
		{adapter.ErrNoThumbnail, http.StatusNotFound},
		{fmt.Errorf("x: %w", vfs.ErrInvalidPath), http.StatusBadRequest},
		{errBadRequest, http.StatusBadRequest},
		{adapter.ErrLimitExceeded, http.StatusRequestEntityTooLarge},
		{errors.New("RPC_CALL_FAIL"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCookies(t *testing.T) {
	dev := NewCookies(true).Set("token", "v", 60e9)
	if dev != "token=v; HttpOnly; Path=/; Max-Age=60; SameSite=Lax" {
		t.Errorf("unexpected dev cookie %q", dev)
	}
	prod := NewCookies(false).Clear("token")
	if prod != "token=; HttpOnly; Path=/; Max-Age=0; SameSite=None; Secure" {
		t.Errorf("unexpected prod cookie %q", prod)
	}
}

func TestRequestBody(t *testing.T) {
	b, err := requestBody(events.APIGatewayProxyRequest{Body: "aGk=", IsBase64Encoded: true})
	if err != nil || string(b) != "hi" {
		t.Errorf("requestBody = %q, %v", b, err)
	}
	if _, err := requestBody(events.APIGatewayProxyRequest{Body: "!!", IsBase64Encoded: true}); !errors.Is(err, errBadRequest) {
		t.Errorf("Expected errBadRequest, got %v", err)
	}
}
