// Package crypto encrypts session blobs before they are embedded in tokens.
package crypto

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Encryptor defines the interface for encryption and decryption.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte) (string, error)
	Decrypt(ctx context.Context, ciphertext string) ([]byte, error)
}

// KMSClient is the subset of *kms.Client used by KMSService.
type KMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSService implements Encryptor using AWS KMS.
// Plaintext is limited to 4 KiB by KMS, which fits a compact MTProto session.
type KMSService struct {
	client KMSClient
	keyID  string
}

// NewKMSService creates a new KMSService.
// keyID can be a key ID, key ARN, or alias name (e.g., "alias/teledrive-session-key").
func NewKMSService(client KMSClient, keyID string) *KMSService {
	return &KMSService{
		client: client,
		keyID:  keyID,
	}
}

// Encrypt returns the base64 encoded KMS ciphertext of plaintext.
func (s *KMSService) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	result, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt data: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(result.CiphertextBlob), nil
}

// Decrypt decrypts the base64 encoded ciphertext using KMS.
func (s *KMSService) Decrypt(ctx context.Context, ciphertext string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	result, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: decoded,
		KeyId:          aws.String(s.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	return result.Plaintext, nil
}
