package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/jun/teledrive/internal/adapter"
)

func TestAuthenticator_SignIn(t *testing.T) {
	ctx := context.Background()
	a := NewAuthenticator("")

	hash, _, err := a.SendCode(ctx, nil, "+1 555 0100")
	if err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	_, err = a.SignIn(ctx, nil, adapter.Credentials{PhoneNumber: "+1 555 0100", PhoneCode: "00000", PhoneCodeHash: hash})
	if err == nil {
		t.Fatal("Expected wrong code to fail")
	}

	session, err := a.SignIn(ctx, nil, adapter.Credentials{PhoneNumber: "+1 555 0100", PhoneCode: DefaultCode, PhoneCodeHash: hash})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !IsSession(session) {
		t.Errorf("Expected a demo session, got %q", session)
	}
	if id, _ := UserID(session); id != "demo-user-15550100" {
		t.Errorf("Unexpected user id %q", id)
	}

	if _, err := a.SignIn(ctx, nil, adapter.Credentials{PhoneNumber: "+1 555 0100", PhoneCode: DefaultCode, PhoneCodeHash: hash}); err == nil {
		t.Error("Expected a used code hash to be rejected")
	}
}

func TestAuthenticator_SecondFactor(t *testing.T) {
	ctx := context.Background()
	a := NewAuthenticator("hunter2")
	hash, _, _ := a.SendCode(ctx, nil, "+1")
	creds := adapter.Credentials{PhoneNumber: "+1", PhoneCode: DefaultCode, PhoneCodeHash: hash}

	if _, err := a.SignIn(ctx, nil, creds); !errors.Is(err, adapter.ErrPasswordNeeded) {
		t.Fatalf("Expected ErrPasswordNeeded, got %v", err)
	}
	creds.Password = "wrong"
	if _, err := a.SignIn(ctx, nil, creds); !errors.Is(err, adapter.ErrPasswordInvalid) {
		t.Fatalf("Expected ErrPasswordInvalid, got %v", err)
	}
	creds.Password = "hunter2"
	if _, err := a.SignIn(ctx, nil, creds); err != nil {
		t.Fatalf("Expected success with password, got %v", err)
	}
}
