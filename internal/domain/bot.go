package domain

import "strings"

// BotSigil is the prefix every bot handle in the registry must carry.
const BotSigil = "@"

type BotHandle string

func (h BotHandle) Valid() bool {
	return len(h) > len(BotSigil) && strings.HasPrefix(string(h), BotSigil)
}

// Username is the handle without the sigil.
func (h BotHandle) Username() string {
	return strings.TrimPrefix(string(h), BotSigil)
}

type BotEntry struct {
	Handle   BotHandle
	Endpoint string
}

func (b BotEntry) HasEndpoint() bool {
	return strings.TrimSpace(b.Endpoint) != ""
}
