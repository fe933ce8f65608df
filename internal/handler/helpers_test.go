package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/teledrive/internal/adapter/memory"
	"github.com/jun/teledrive/internal/crypto"
	"github.com/jun/teledrive/internal/handler"
	"github.com/jun/teledrive/internal/session"
)

const testSecret = "test-secret"

func newSessions() *session.Manager {
	return session.NewManager(testSecret, crypto.NewSecretboxEncryptor("test-session-key"), 0)
}

// login issues a token for a fresh demo account and returns it.
func login(t *testing.T, sessions *session.Manager) string {
	t.Helper()
	token, err := sessions.Issue(context.Background(), memory.NewSession())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

func makeRequest(method, path, body, token string) events.APIGatewayProxyRequest {
	req := events.APIGatewayProxyRequest{
		HTTPMethod:            method,
		Path:                  path,
		Body:                  body,
		Headers:               map[string]string{"Content-Type": "application/json"},
		QueryStringParameters: map[string]string{},
		PathParameters:        map[string]string{},
	}
	if token != "" {
		req.Headers["Cookie"] = handler.SessionCookie + "=" + token
	}
	return req
}

func multipartRequest(t *testing.T, token, dir, fileName string, content []byte) events.APIGatewayProxyRequest {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("path", dir); err != nil {
		t.Fatal(err)
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	w.Close()

	req := makeRequest("POST", "/files/upload", buf.String(), token)
	req.Headers["Content-Type"] = w.FormDataContentType()
	return req
}

func decode[T any](t *testing.T, resp events.APIGatewayProxyResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(resp.Body), &v); err != nil {
		t.Fatalf("Failed to decode body %q: %v", resp.Body, err)
	}
	return v
}
