package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jun/teledrive/internal/adapter"
)

// SessionPrefix marks session blobs that belong to demo accounts.
const SessionPrefix = "demo:"

// NewSession returns a session blob for a fresh demo account.
func NewSession() []byte {
	return []byte(SessionPrefix + "demo-user-" + uuid.New().String())
}

// IsSession reports whether blob belongs to a demo account.
func IsSession(blob []byte) bool {
	return strings.HasPrefix(string(blob), SessionPrefix)
}

// UserID extracts the demo user ID from a session blob.
func UserID(blob []byte) (string, error) {
	id, ok := strings.CutPrefix(string(blob), SessionPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("not a demo session")
	}
	return id, nil
}

// Provider implements adapter.StorageProvider backed by DynamoDB (or Memory if nil).
// Accounts idle for longer than demoItemTTL are dropped; by then every item
// they stored has expired.
type Provider struct {
	client    DynamoClient
	tableName string
	stores    map[string]*store
	seq       atomic.Int64
	now       func() time.Time
	lastSweep time.Time
	mu        sync.Mutex
}

type store struct {
	adapter  *MemoryAdapter
	lastUsed time.Time
}

// NewProvider creates a Provider. client may be nil.
func NewProvider(client DynamoClient, tableName string) *Provider {
	if tableName == "" {
		tableName = "FileStore"
	}
	return &Provider{
		client:    client,
		tableName: tableName,
		stores:    make(map[string]*store),
		now:       time.Now,
	}
}

func (p *Provider) GetAdapter(ctx context.Context, session []byte) (adapter.StorageAdapter, error) {
	userID, err := UserID(session)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= sweepInterval {
		p.sweepLocked(now)
	}
	s, ok := p.stores[userID]
	if !ok {
		s = &store{adapter: newMemoryAdapter(p.client, p.tableName, userID, &p.seq, p.now)}
		p.stores[userID] = s
	}
	s.lastUsed = now
	return s.adapter, nil
}

const sweepInterval = 10 * time.Minute

func (p *Provider) sweepLocked(now time.Time) {
	for id, s := range p.stores {
		if now.Sub(s.lastUsed) > demoItemTTL {
			delete(p.stores, id)
		}
	}
	p.lastSweep = now
}
