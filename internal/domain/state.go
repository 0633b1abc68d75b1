package domain

import "time"

type LoginStatus string

const (
	LoginStatusOK     LoginStatus = "ok"
	LoginStatusFailed LoginStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryStatusNone   DeliveryStatus = ""
	DeliveryStatusOK     DeliveryStatus = "ok"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// AccountState is the last known outcome of login and polling for an account.
type AccountState struct {
	Phone       PhoneID
	LoginStatus LoginStatus
	LoginError  string
	LastLoginAt time.Time
	Bots        []BotState
}

type BotState struct {
	Handle      BotHandle
	Query       string
	FetchedAt   time.Time
	ChangedAt   time.Time
	Missed      bool
	Delivery    DeliveryStatus
	DeliveredAt time.Time
}

// Bot returns the state for handle, creating an empty entry when missing.
func (s *AccountState) Bot(handle BotHandle) *BotState {
	for i := range s.Bots {
		if s.Bots[i].Handle == handle {
			return &s.Bots[i]
		}
	}
	s.Bots = append(s.Bots, BotState{Handle: handle})
	return &s.Bots[len(s.Bots)-1]
}
