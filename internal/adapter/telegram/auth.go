package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/jun/teledrive/internal/adapter"
)

// Authenticator implements adapter.Authenticator with the Telegram phone
// code login. The pending session carries the auth key the code was
// requested with; sign-in must run on the same key.
type Authenticator struct {
	provider *Provider
}

func (a *Authenticator) SendCode(ctx context.Context, pending []byte, phone string) (string, []byte, error) {
	store := NewStorage(pending)
	var hash string
	err := a.provider.run(ctx, store, "send_code", func(ctx context.Context, client *telegram.Client) error {
		sent, err := client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
		if err != nil {
			return fmt.Errorf("failed to send code: %w", err)
		}
		code, ok := sent.(*tg.AuthSentCode)
		if !ok {
			return fmt.Errorf("unexpected send code response %T", sent)
		}
		hash = code.PhoneCodeHash
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return hash, store.Bytes(), nil
}

// SignIn returns the authorized session. When the account has a second
// factor and no password was given it returns adapter.ErrPasswordNeeded
// together with the pending session to retry with.
func (a *Authenticator) SignIn(ctx context.Context, pending []byte, creds adapter.Credentials) ([]byte, error) {
	store := NewStorage(pending)
	err := a.provider.run(ctx, store, "sign_in", func(ctx context.Context, client *telegram.Client) error {
		_, err := client.Auth().SignIn(ctx, creds.PhoneNumber, creds.PhoneCode, creds.PhoneCodeHash)
		if !errors.Is(err, auth.ErrPasswordAuthNeeded) {
			return err
		}
		if creds.Password == "" {
			return adapter.ErrPasswordNeeded
		}
		if _, err := client.Auth().Password(ctx, creds.Password); err != nil {
			if errors.Is(err, auth.ErrPasswordInvalid) {
				return adapter.ErrPasswordInvalid
			}
			return fmt.Errorf("failed to check password: %w", err)
		}
		return nil
	})
	if errors.Is(err, adapter.ErrPasswordNeeded) {
		return store.Bytes(), err
	}
	if err != nil {
		return nil, err
	}
	return store.Bytes(), nil
}
