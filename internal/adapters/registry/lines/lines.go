// Package lines reads the plain-text account list and bot registry files.
package lines

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
)

const fieldSeparator = "|"

type AccountFile struct {
	path string
}

var _ ports.AccountSource = (*AccountFile)(nil)

func NewAccountFile(path string) *AccountFile {
	return &AccountFile{path: path}
}

// Accounts returns one phone per non-blank line, in file order, without duplicates.
func (f *AccountFile) Accounts(ctx context.Context) ([]domain.PhoneID, error) {
	lines, err := readLines(ctx, f.path)
	if err != nil {
		return nil, err
	}

	phones := make([]domain.PhoneID, 0, len(lines))
	seen := make(map[domain.PhoneID]struct{}, len(lines))
	for _, line := range lines {
		phone := domain.PhoneID(line)
		if _, ok := seen[phone]; ok {
			continue
		}
		seen[phone] = struct{}{}
		phones = append(phones, phone)
	}

	return phones, nil
}

type BotFile struct {
	path string
}

var _ ports.BotRegistry = (*BotFile)(nil)

func NewBotFile(path string) *BotFile {
	return &BotFile{path: path}
}

// Bots parses "handle|endpoint" lines. Lines whose handle lacks the sigil are dropped.
func (f *BotFile) Bots(ctx context.Context) ([]domain.BotEntry, error) {
	lines, err := readLines(ctx, f.path)
	if err != nil {
		return nil, err
	}

	return ParseBots(lines), nil
}

func ParseBots(lines []string) []domain.BotEntry {
	bots := make([]domain.BotEntry, 0, len(lines))
	for _, line := range lines {
		handle, endpoint, _ := strings.Cut(line, fieldSeparator)
		entry := domain.BotEntry{
			Handle:   domain.BotHandle(strings.TrimSpace(handle)),
			Endpoint: strings.TrimSpace(endpoint),
		}
		if !entry.Handle.Valid() {
			continue
		}
		bots = append(bots, entry)
	}
	return bots
}

func readLines(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrConfigMissing)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return lines, nil
}
