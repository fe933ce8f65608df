// Package secret resolves the service's credentials: the token signing
// key, the Telegram API hash, the local session key and the CloudFront
// origin secret. Deployed functions read them from SSM Parameter Store;
// local runs read them from the environment.
package secret

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMClient is the part of *ssm.Client the resolver calls.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver looks up a secret by its parameter name, e.g.
// "/teledrive/telegram-api-hash".
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver reads SecureString parameters under /teledrive/.
type SSMResolver struct {
	client SSMClient
}

// NewSSMResolver wraps an SSM client.
func NewSSMResolver(client SSMClient) Resolver {
	return &SSMResolver{client: client}
}

func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// EnvResolver serves DEV_MODE. A parameter is read from the variable named
// after its last path segment, so "/teledrive/telegram-api-hash" comes from
// TELEGRAM_API_HASH and "/teledrive/session-key" from SESSION_KEY.
type EnvResolver struct{}

// NewEnvResolver returns an EnvResolver.
func NewEnvResolver() Resolver {
	return &EnvResolver{}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := paramNameToEnvVar(name)
	val := os.Getenv(envName)
	if val == "" {
		return "", fmt.Errorf("environment variable %q (from param %q) is not set", envName, name)
	}
	return val, nil
}

// paramNameToEnvVar maps "/teledrive/api-gateway-secret" to API_GATEWAY_SECRET.
func paramNameToEnvVar(name string) string {
	parts := strings.Split(name, "/")
	last := parts[len(parts)-1]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}

// Static serves secrets from a map keyed by parameter name.
type Static map[string]string

func (s Static) GetSecret(_ context.Context, name string) (string, error) {
	val, ok := s[name]
	if !ok || val == "" {
		return "", fmt.Errorf("secret %q is not set", name)
	}
	return val, nil
}

// Lookup returns def when name cannot be resolved. Optional secrets such as
// the origin secret go through here.
func Lookup(ctx context.Context, r Resolver, name, def string) string {
	val, err := r.GetSecret(ctx, name)
	if err != nil {
		return def
	}
	return val
}
