// Package auth runs the phone-code login against a storage facade
// authenticator and reports the outcome as a typed result.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jun/teledrive/internal/adapter"
)

// Step is the position of a login in the wizard.
type Step int

const (
	StepAwaitingCode Step = iota
	StepAwaitingVerification
	StepAwaitingSecondFactor
	StepAuthenticated
)

func (s Step) String() string {
	switch s {
	case StepAwaitingCode:
		return "awaiting_code"
	case StepAwaitingVerification:
		return "awaiting_verification"
	case StepAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StepAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Outcome is the result kind of a verification attempt.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSuccess
	OutcomeSecondFactorRequired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSecondFactorRequired:
		return "second_factor_required"
	}
	return "failed"
}

var (
	ErrPhoneRequired = errors.New("phone number is required")
	ErrCodeRequired  = errors.New("phone code and code hash are required")
)

// CodeRequest is returned by SendCode. Pending must be handed back to
// Verify unchanged.
type CodeRequest struct {
	PhoneCodeHash string
	Pending       []byte
	Step          Step
}

// Result is the outcome of Verify.
type Result struct {
	Outcome Outcome
	Step    Step
	// Session is the authorized session on success.
	Session []byte
	// Pending replaces the caller's pending session when a second factor
	// is required. Nil means keep the previous one.
	Pending []byte
	// Reason describes a failure.
	Reason string
	Err    error
}

// Flow drives the login wizard. It keeps no state between calls.
type Flow struct {
	authenticator adapter.Authenticator
}

// NewFlow creates a Flow over authenticator.
func NewFlow(authenticator adapter.Authenticator) *Flow {
	return &Flow{authenticator: authenticator}
}

// SendCode asks for a login code to be delivered to phone.
func (f *Flow) SendCode(ctx context.Context, phone string) (CodeRequest, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return CodeRequest{Step: StepAwaitingCode}, ErrPhoneRequired
	}
	hash, pending, err := f.authenticator.SendCode(ctx, nil, phone)
	if err != nil {
		return CodeRequest{Step: StepAwaitingCode}, fmt.Errorf("send code: %w", err)
	}
	return CodeRequest{PhoneCodeHash: hash, Pending: pending, Step: StepAwaitingVerification}, nil
}

// Verify checks the code, and the password when one is given, in a single
// round trip.
func (f *Flow) Verify(ctx context.Context, pending []byte, creds adapter.Credentials) Result {
	creds.PhoneNumber = strings.TrimSpace(creds.PhoneNumber)
	if creds.PhoneNumber == "" {
		return failed(StepAwaitingVerification, ErrPhoneRequired)
	}
	if creds.PhoneCode == "" || creds.PhoneCodeHash == "" {
		return failed(StepAwaitingVerification, ErrCodeRequired)
	}

	session, err := f.authenticator.SignIn(ctx, pending, creds)
	switch {
	case err == nil:
		return Result{Outcome: OutcomeSuccess, Step: StepAuthenticated, Session: session}
	case errors.Is(err, adapter.ErrPasswordNeeded):
		return Result{
			Outcome: OutcomeSecondFactorRequired,
			Step:    StepAwaitingSecondFactor,
			Pending: session,
			Reason:  "Two-factor authentication is enabled. Please provide a password.",
			Err:     err,
		}
	case errors.Is(err, adapter.ErrPasswordInvalid):
		return failed(StepAwaitingSecondFactor, err)
	default:
		return failed(StepAwaitingVerification, err)
	}
}

func failed(step Step, err error) Result {
	return Result{Outcome: OutcomeFailed, Step: step, Reason: err.Error(), Err: err}
}
