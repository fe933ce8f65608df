package crypto

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretbox_RoundTrip(t *testing.T) {
	ctx := context.Background()
	e := NewSecretboxEncryptor("dev-key")

	ct, err := e.Encrypt(ctx, []byte(`{"dc":2}`))
	require.NoError(t, err)

	pt, err := e.Decrypt(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, `{"dc":2}`, string(pt))
}

func TestSecretbox_NonceIsRandom(t *testing.T) {
	ctx := context.Background()
	e := NewSecretboxEncryptor("dev-key")
	a, _ := e.Encrypt(ctx, []byte("same"))
	b, _ := e.Encrypt(ctx, []byte("same"))
	assert.NotEqual(t, a, b)
}

func TestSecretbox_WrongKey(t *testing.T) {
	ctx := context.Background()
	ct, err := NewSecretboxEncryptor("a").Encrypt(ctx, []byte("blob"))
	require.NoError(t, err)

	_, err = NewSecretboxEncryptor("b").Decrypt(ctx, ct)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSecretbox_Garbage(t *testing.T) {
	e := NewSecretboxEncryptor("a")
	_, err := e.Decrypt(context.Background(), "!!not base64!!")
	assert.Error(t, err)

	_, err = e.Decrypt(context.Background(), "c2hvcnQ")
	assert.ErrorIs(t, err, ErrDecrypt)
}

type fakeKMS struct {
	fail bool
}

func (f *fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if f.fail {
		return nil, errors.New("kms unavailable")
	}
	out := append([]byte("kms:"), in.Plaintext...)
	return &kms.EncryptOutput{CiphertextBlob: out}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if f.fail {
		return nil, errors.New("kms unavailable")
	}
	return &kms.DecryptOutput{Plaintext: in.CiphertextBlob[len("kms:"):]}, nil
}

func TestKMSService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewKMSService(&fakeKMS{}, "alias/test")

	ct, err := s.Encrypt(ctx, []byte("session"))
	require.NoError(t, err)
	pt, err := s.Decrypt(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "session", string(pt))
}

func TestKMSService_Failure(t *testing.T) {
	s := NewKMSService(&fakeKMS{fail: true}, "alias/test")
	_, err := s.Encrypt(context.Background(), []byte("session"))
	assert.Error(t, err)
}
