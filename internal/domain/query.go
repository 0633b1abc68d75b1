package domain

import (
	"fmt"
	"time"
)

type StorePolicy string

const (
	// StorePolicyHistory keys records by bot, writes only on change and keeps
	// older tokens below the newest one.
	StorePolicyHistory StorePolicy = "history"
	// StorePolicyOverwrite keys records by account and bot and always writes.
	StorePolicyOverwrite StorePolicy = "overwrite"
)

func ParseStorePolicy(raw string) (StorePolicy, error) {
	policy := StorePolicy(raw)
	switch policy {
	case StorePolicyHistory, StorePolicyOverwrite:
		return policy, nil
	default:
		return "", fmt.Errorf("unsupported store policy %q", raw)
	}
}

type QueryKey struct {
	Account PhoneID
	Bot     BotHandle
}

type SaveResult struct {
	Written bool
	Changed bool
}

// Delivery is the payload forwarded to a bot endpoint.
type Delivery struct {
	Query     string    `json:"query"`
	Bot       string    `json:"bot"`
	Account   string    `json:"account"`
	FetchedAt time.Time `json:"fetched_at"`
}
