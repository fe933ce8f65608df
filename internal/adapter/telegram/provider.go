// Package telegram implements the storage facade on top of a Telegram
// account's Saved Messages using the gotd MTProto client.
package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/metrics"
)

// Provider implements adapter.StorageProvider for Telegram sessions.
type Provider struct {
	appID   int
	appHash string
	log     *zap.Logger
}

// NewProvider creates a Provider for the given application credentials.
func NewProvider(appID int, appHash string, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{appID: appID, appHash: appHash, log: log}
}

func (p *Provider) GetAdapter(ctx context.Context, session []byte) (adapter.StorageAdapter, error) {
	if len(session) == 0 {
		return nil, errors.New("empty telegram session")
	}
	return &Adapter{provider: p, session: session}, nil
}

// Authenticator returns the login authenticator for this application.
func (p *Provider) Authenticator() *Authenticator {
	return &Authenticator{provider: p}
}

func (p *Provider) newClient(store *Storage) *telegram.Client {
	return telegram.NewClient(p.appID, p.appHash, telegram.Options{
		SessionStorage: store,
		Logger:         p.log,
		NoUpdates:      true,
	})
}

// run opens one connection for the duration of f.
func (p *Provider) run(ctx context.Context, store *Storage, op string, f func(ctx context.Context, client *telegram.Client) error) error {
	start := time.Now()
	client := p.newClient(store)
	err := client.Run(ctx, func(ctx context.Context) error {
		return f(ctx, client)
	})
	metrics.RecordUpstreamCall(op, err, time.Since(start))
	if err != nil {
		p.log.Debug("telegram call failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

// self is the peer of the Saved Messages chat.
func self() tg.InputPeerClass {
	return &tg.InputPeerSelf{}
}
