// Package file persists extracted query tokens as plain text files.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
)

const fileSuffix = "_query.txt"

type writeFunc func(path string, data []byte) error

// New returns the store implementing policy, rooted at root.
func New(policy domain.StorePolicy, root string, historyLimit int) (ports.QueryStore, error) {
	switch policy {
	case domain.StorePolicyHistory:
		return NewHistoryStore(root, historyLimit), nil
	case domain.StorePolicyOverwrite:
		return NewOverwriteStore(root), nil
	default:
		return nil, fmt.Errorf("unsupported store policy %q", policy)
	}
}

// HistoryStore keeps one file per bot with the newest token on the first
// line. A file is rewritten only when the token differs from that line.
type HistoryStore struct {
	root         string
	historyLimit int
	writeFile    writeFunc
}

var (
	_ ports.QueryStore   = (*HistoryStore)(nil)
	_ ports.QueryHistory = (*HistoryStore)(nil)
)

// NewHistoryStore caps the file at historyLimit lines when historyLimit > 0.
func NewHistoryStore(root string, historyLimit int) *HistoryStore {
	return &HistoryStore{root: root, historyLimit: historyLimit, writeFile: writeFileAtomic}
}

func (s *HistoryStore) Policy() domain.StorePolicy {
	return domain.StorePolicyHistory
}

func (s *HistoryStore) path(key domain.QueryKey) string {
	return filepath.Join(s.root, key.Bot.Username()+fileSuffix)
}

func (s *HistoryStore) Load(ctx context.Context, key domain.QueryKey) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	lines, err := readTokens(s.path(key))
	if err != nil {
		return "", false, err
	}
	if len(lines) == 0 {
		return "", false, nil
	}
	return lines[0], true, nil
}

// History returns every stored token, newest first.
func (s *HistoryStore) History(ctx context.Context, key domain.QueryKey) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readTokens(s.path(key))
}

func (s *HistoryStore) Save(ctx context.Context, key domain.QueryKey, token string) (domain.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SaveResult{}, err
	}
	if err := validateKey(key, false); err != nil {
		return domain.SaveResult{}, err
	}

	path := s.path(key)
	lines, err := readTokens(path)
	if err != nil {
		return domain.SaveResult{}, err
	}
	if len(lines) > 0 && lines[0] == token {
		return domain.SaveResult{}, nil
	}

	lines = append([]string{token}, lines...)
	if s.historyLimit > 0 && len(lines) > s.historyLimit {
		lines = lines[:s.historyLimit]
	}

	if err := s.writeFile(path, []byte(strings.Join(lines, "\n")+"\n")); err != nil {
		return domain.SaveResult{}, fmt.Errorf("write %s: %w", path, errors.Join(domain.ErrStoreIO, err))
	}
	return domain.SaveResult{Written: true, Changed: true}, nil
}

// OverwriteStore keeps one file per account and bot holding only the latest
// token. Every save writes.
type OverwriteStore struct {
	root      string
	writeFile writeFunc
}

var _ ports.QueryStore = (*OverwriteStore)(nil)

func NewOverwriteStore(root string) *OverwriteStore {
	return &OverwriteStore{root: root, writeFile: writeFileAtomic}
}

func (s *OverwriteStore) Policy() domain.StorePolicy {
	return domain.StorePolicyOverwrite
}

func (s *OverwriteStore) path(key domain.QueryKey) string {
	return filepath.Join(s.root, key.Account.StorageName(), key.Bot.Username()+fileSuffix)
}

func (s *OverwriteStore) Load(ctx context.Context, key domain.QueryKey) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	lines, err := readTokens(s.path(key))
	if err != nil {
		return "", false, err
	}
	if len(lines) == 0 {
		return "", false, nil
	}
	return lines[0], true, nil
}

func (s *OverwriteStore) Save(ctx context.Context, key domain.QueryKey, token string) (domain.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SaveResult{}, err
	}
	if err := validateKey(key, true); err != nil {
		return domain.SaveResult{}, err
	}

	path := s.path(key)
	previous, _, err := s.Load(ctx, key)
	if err != nil {
		return domain.SaveResult{}, err
	}

	if err := s.writeFile(path, []byte(token)); err != nil {
		return domain.SaveResult{}, fmt.Errorf("write %s: %w", path, errors.Join(domain.ErrStoreIO, err))
	}
	return domain.SaveResult{Written: true, Changed: previous != token}, nil
}

func validateKey(key domain.QueryKey, needAccount bool) error {
	if !key.Bot.Valid() {
		return fmt.Errorf("invalid bot handle %q", key.Bot)
	}
	name := key.Bot.Username()
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid bot handle %q", key.Bot)
	}
	if needAccount {
		dir := key.Account.StorageName()
		if dir == "" || strings.ContainsAny(dir, `/\`) || dir == "." || dir == ".." {
			return fmt.Errorf("invalid account %q", key.Account)
		}
	}
	return nil
}

func readTokens(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, errors.Join(domain.ErrStoreIO, err))
	}

	var tokens []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tokens = append(tokens, line)
		}
	}
	return tokens, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create query dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".query-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp query file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp query file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp query file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp query file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp query file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp query file: %w", err)
	}

	cleanup = false
	return nil
}
