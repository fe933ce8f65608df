package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/adapter/memory"
)

type failingAuthenticator struct{ err error }

func (f failingAuthenticator) SendCode(context.Context, []byte, string) (string, []byte, error) {
	return "", nil, f.err
}

func (f failingAuthenticator) SignIn(context.Context, []byte, adapter.Credentials) ([]byte, error) {
	return nil, f.err
}

func TestFlow_Success(t *testing.T) {
	ctx := context.Background()
	flow := NewFlow(memory.NewAuthenticator(""))

	req, err := flow.SendCode(ctx, " +1555 ")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingVerification, req.Step)
	assert.NotEmpty(t, req.PhoneCodeHash)

	res := flow.Verify(ctx, req.Pending, adapter.Credentials{
		PhoneNumber:   "+1555",
		PhoneCode:     memory.DefaultCode,
		PhoneCodeHash: req.PhoneCodeHash,
	})
	require.Equal(t, OutcomeSuccess, res.Outcome, res.Reason)
	assert.Equal(t, StepAuthenticated, res.Step)
	assert.True(t, memory.IsSession(res.Session))
}

func TestFlow_SecondFactor(t *testing.T) {
	ctx := context.Background()
	flow := NewFlow(memory.NewAuthenticator("secret"))
	req, err := flow.SendCode(ctx, "+1555")
	require.NoError(t, err)

	creds := adapter.Credentials{PhoneNumber: "+1555", PhoneCode: memory.DefaultCode, PhoneCodeHash: req.PhoneCodeHash}
	res := flow.Verify(ctx, req.Pending, creds)
	assert.Equal(t, OutcomeSecondFactorRequired, res.Outcome)
	assert.Equal(t, StepAwaitingSecondFactor, res.Step)
	assert.NotEmpty(t, res.Reason)

	creds.Password = "wrong"
	res = flow.Verify(ctx, req.Pending, creds)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, adapter.ErrPasswordInvalid)

	creds.Password = "secret"
	res = flow.Verify(ctx, req.Pending, creds)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
}

func TestFlow_Validation(t *testing.T) {
	ctx := context.Background()
	flow := NewFlow(memory.NewAuthenticator(""))

	_, err := flow.SendCode(ctx, "  ")
	assert.ErrorIs(t, err, ErrPhoneRequired)

	res := flow.Verify(ctx, nil, adapter.Credentials{PhoneNumber: "+1"})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrCodeRequired)
}

func TestFlow_UpstreamFailure(t *testing.T) {
	ctx := context.Background()
	upstream := errors.New("PHONE_NUMBER_INVALID")
	flow := NewFlow(failingAuthenticator{err: upstream})

	_, err := flow.SendCode(ctx, "+1")
	assert.ErrorIs(t, err, upstream)

	res := flow.Verify(ctx, nil, adapter.Credentials{PhoneNumber: "+1", PhoneCode: "1", PhoneCodeHash: "h"})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "PHONE_NUMBER_INVALID", res.Reason)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "second_factor_required", OutcomeSecondFactorRequired.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "awaiting_code", StepAwaitingCode.String())
}
