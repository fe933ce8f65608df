package adapter

import (
	"context"
)

// StorageProvider builds a StorageAdapter bound to one login session.
type StorageProvider interface {
	// GetAdapter returns a StorageAdapter for the given session blob.
	GetAdapter(ctx context.Context, session []byte) (StorageAdapter, error)
}

// Credentials are the inputs of a sign-in attempt.
type Credentials struct {
	PhoneNumber   string
	PhoneCode     string
	PhoneCodeHash string
	Password      string
}

// Authenticator runs the account login against the messaging service.
// pending is the pre-auth session returned by SendCode; it may be nil, in
// which case a fresh session is created.
type Authenticator interface {
	// SendCode asks the service to deliver a login code to phone.
	SendCode(ctx context.Context, pending []byte, phone string) (codeHash string, session []byte, err error)

	// SignIn verifies the code and, if required, the password. On success
	// the returned session is authorized.
	SignIn(ctx context.Context, pending []byte, creds Credentials) (session []byte, err error)
}
