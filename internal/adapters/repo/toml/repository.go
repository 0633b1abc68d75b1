// Package toml stores per-account run state in a single TOML file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	tempFilePattern = ".state-*.toml.tmp"
)

type Repository struct {
	statePath string
	mu        *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.StateRepository = (*Repository)(nil)

func NewRepository(statePath string) (*Repository, error) {
	if statePath == "" {
		return nil, errors.New("state path is empty")
	}

	statePath, err := normalizeStatePath(statePath)
	if err != nil {
		return nil, err
	}

	return &Repository{statePath: statePath, mu: lockForPath(statePath)}, nil
}

func (r *Repository) Path() string {
	return r.statePath
}

// Save replaces the stored state for state.Phone.
func (r *Repository) Save(ctx context.Context, state domain.AccountState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(state)
	updated := false
	for i := range file.Accounts {
		if file.Accounts[i].Phone == encoded.Phone {
			file.Accounts[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Accounts = append(file.Accounts, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) Get(ctx context.Context, phone domain.PhoneID) (domain.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return domain.AccountState{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.AccountState{}, err
	}

	for _, entry := range file.Accounts {
		if entry.Phone == string(phone) {
			return fromSchema(entry), nil
		}
	}

	return domain.AccountState{}, domain.ErrAccountNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	states := make([]domain.AccountState, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		states = append(states, fromSchema(entry))
	}

	return states, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeStatePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.statePath), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.statePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, r.statePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(state domain.AccountState) accountSchema {
	bots := make([]botSchema, 0, len(state.Bots))
	for _, bot := range state.Bots {
		bots = append(bots, botSchema{
			Handle:      string(bot.Handle),
			Query:       bot.Query,
			FetchedAt:   formatTime(bot.FetchedAt),
			ChangedAt:   formatTime(bot.ChangedAt),
			Missed:      bot.Missed,
			Delivery:    string(bot.Delivery),
			DeliveredAt: formatTime(bot.DeliveredAt),
		})
	}

	return accountSchema{
		Phone:       string(state.Phone),
		LoginStatus: string(state.LoginStatus),
		LoginError:  state.LoginError,
		LastLoginAt: formatTime(state.LastLoginAt),
		Bots:        bots,
	}
}

func fromSchema(entry accountSchema) domain.AccountState {
	var bots []domain.BotState
	for _, bot := range entry.Bots {
		bots = append(bots, domain.BotState{
			Handle:      domain.BotHandle(bot.Handle),
			Query:       bot.Query,
			FetchedAt:   parseTime(bot.FetchedAt),
			ChangedAt:   parseTime(bot.ChangedAt),
			Missed:      bot.Missed,
			Delivery:    domain.DeliveryStatus(bot.Delivery),
			DeliveredAt: parseTime(bot.DeliveredAt),
		})
	}

	return domain.AccountState{
		Phone:       domain.PhoneID(entry.Phone),
		LoginStatus: domain.LoginStatus(entry.LoginStatus),
		LoginError:  entry.LoginError,
		LastLoginAt: parseTime(entry.LastLoginAt),
		Bots:        bots,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
