package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type PhoneID string

// StorageName is the directory name used for per-account files.
func (p PhoneID) StorageName() string {
	return strings.TrimPrefix(strings.TrimSpace(string(p)), "+")
}

// APIIdentity is the application id/hash pair required to open a session.
type APIIdentity struct {
	ID   int
	Hash string
}

func (i APIIdentity) IsZero() bool {
	return i.ID == 0 && i.Hash == ""
}

func (i APIIdentity) Validate() error {
	if i.ID <= 0 {
		return fmt.Errorf("api id must be positive, got %d", i.ID)
	}
	if strings.TrimSpace(i.Hash) == "" {
		return fmt.Errorf("api hash is required")
	}
	return nil
}

// ParseAPIIdentity decodes the two-line "id\nhash" representation.
func ParseAPIIdentity(raw string) (APIIdentity, error) {
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return APIIdentity{}, fmt.Errorf("api identity needs id and hash lines, got %d", len(lines))
	}

	id, err := strconv.Atoi(lines[0])
	if err != nil {
		return APIIdentity{}, fmt.Errorf("parse api id %q: %w", lines[0], err)
	}

	identity := APIIdentity{ID: id, Hash: lines[1]}
	if err := identity.Validate(); err != nil {
		return APIIdentity{}, err
	}
	return identity, nil
}

func (i APIIdentity) Encode() string {
	return fmt.Sprintf("%d\n%s\n", i.ID, i.Hash)
}

// Account is what the credential store holds for one phone.
type Account struct {
	Phone        PhoneID
	Identity     APIIdentity
	SessionToken string
}

func (a Account) HasSession() bool {
	return a.SessionToken != ""
}
