package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jun/teledrive/internal/adapter"
)

// DefaultCode is the login code accepted by demo accounts.
const DefaultCode = "12345"

// Authenticator implements adapter.Authenticator for demo accounts.
// Any phone number can log in with Code; when Password is set the account
// behaves as if it had a second factor.
type Authenticator struct {
	Code     string
	Password string

	mu     sync.Mutex
	hashes map[string]string // code hash -> phone
}

// NewAuthenticator creates a demo Authenticator.
func NewAuthenticator(password string) *Authenticator {
	return &Authenticator{
		Code:     DefaultCode,
		Password: password,
		hashes:   make(map[string]string),
	}
}

func (a *Authenticator) SendCode(ctx context.Context, pending []byte, phone string) (string, []byte, error) {
	if strings.TrimSpace(phone) == "" {
		return "", nil, fmt.Errorf("phone number is required")
	}
	hash := uuid.New().String()
	a.mu.Lock()
	a.hashes[hash] = phone
	a.mu.Unlock()
	return hash, []byte("pending:" + hash), nil
}

func (a *Authenticator) SignIn(ctx context.Context, pending []byte, creds adapter.Credentials) ([]byte, error) {
	a.mu.Lock()
	phone, ok := a.hashes[creds.PhoneCodeHash]
	a.mu.Unlock()
	if !ok || phone != creds.PhoneNumber {
		return nil, fmt.Errorf("PHONE_CODE_EXPIRED")
	}
	if creds.PhoneCode != a.Code {
		return nil, fmt.Errorf("PHONE_CODE_INVALID")
	}
	if a.Password != "" {
		if creds.Password == "" {
			return nil, adapter.ErrPasswordNeeded
		}
		if creds.Password != a.Password {
			return nil, adapter.ErrPasswordInvalid
		}
	}

	a.mu.Lock()
	delete(a.hashes, creds.PhoneCodeHash)
	a.mu.Unlock()
	return []byte(SessionPrefix + "demo-user-" + digits(phone)), nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
