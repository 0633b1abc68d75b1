package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	Phone       string      `toml:"phone"`
	LoginStatus string      `toml:"login_status"`
	LoginError  string      `toml:"login_error,omitempty"`
	LastLoginAt string      `toml:"last_login_at,omitempty"`
	Bots        []botSchema `toml:"bots,omitempty"`
}

type botSchema struct {
	Handle      string `toml:"handle"`
	Query       string `toml:"query,omitempty"`
	FetchedAt   string `toml:"fetched_at,omitempty"`
	ChangedAt   string `toml:"changed_at,omitempty"`
	Missed      bool   `toml:"missed,omitempty"`
	Delivery    string `toml:"delivery,omitempty"`
	DeliveredAt string `toml:"delivered_at,omitempty"`
}
