package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// memoryStorage keeps the MTProto session in memory so that it can be
// exported as an opaque token and persisted through the credential store.
type memoryStorage struct {
	mu   sync.Mutex
	data []byte
}

var _ session.Storage = (*memoryStorage)(nil)

func newMemoryStorage(data []byte) *memoryStorage {
	return &memoryStorage{data: append([]byte(nil), data...)}
}

func (s *memoryStorage) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *memoryStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
	return nil
}

func (s *memoryStorage) snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.data...)
}

func encodeToken(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeToken(token string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("decode session token: empty")
	}
	return data, nil
}
