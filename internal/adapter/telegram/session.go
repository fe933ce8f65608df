package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	tgsession "github.com/gotd/td/session"
)

// Storage is an in-memory gotd session storage seeded from a session blob.
// Stored sessions are compacted: the DC config that gotd persists alongside
// the auth key is dropped, since every connection fetches it again during
// initConnection and it would not fit in a cookie.
type Storage struct {
	mu   sync.Mutex
	data []byte
}

// NewStorage returns a Storage holding blob. An empty blob means no session.
func NewStorage(blob []byte) *Storage {
	return &Storage{data: append([]byte(nil), blob...)}
}

func (s *Storage) LoadSession(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, tgsession.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *Storage) StoreSession(ctx context.Context, data []byte) error {
	compacted, err := compact(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = compacted
	s.mu.Unlock()
	return nil
}

// Bytes returns the current session blob.
func (s *Storage) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// compact removes Data.Config from gotd's {"Version", "Data"} envelope and
// leaves every other field untouched.
func compact(data []byte) ([]byte, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	raw, ok := envelope["Data"]
	if !ok {
		return data, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	delete(fields, "Config")

	stripped, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	envelope["Data"] = stripped
	return json.Marshal(envelope)
}
