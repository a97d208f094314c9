package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types carried in the envelope.
const (
	TypeUserRegistered      = "USER_REGISTERED"
	TypeWalletCreated       = "WALLET_CREATED"
	TypeWalletCredited      = "WALLET_CREDITED"
	TypeWalletDebited       = "WALLET_DEBITED"
	TypeInsufficientBalance = "INSUFFICIENT_BALANCE"
)

// routingKeys maps an event type to the topic key it is routed under.
var routingKeys = map[string]string{
	TypeUserRegistered:      "user.registered",
	TypeWalletCreated:       "wallet.created",
	TypeWalletCredited:      "wallet.credited",
	TypeWalletDebited:       "wallet.debited",
	TypeInsufficientBalance: "wallet.insufficient_balance",
}

// RoutingKey returns the topic key for an event type, or the empty string for
// an unknown type.
func RoutingKey(eventType string) string {
	return routingKeys[eventType]
}

// Envelope is the wire format for every published event. Consumers must be
// idempotent over EventID: delivery is at-least-once.
type Envelope struct {
	EventType string          `json:"eventType"`
	EventID   string          `json:"eventId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload in a uniquely identified, timestamped envelope.
func NewEnvelope(eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType: eventType,
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// UserRegisteredData is the payload of user.registered events.
type UserRegisteredData struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// WalletCreatedData is the payload of wallet.created events.
type WalletCreatedData struct {
	UserID   string `json:"userId"`
	WalletID string `json:"walletId"`
}

// BalanceChangedData is the payload of wallet.credited and wallet.debited events.
type BalanceChangedData struct {
	UserID        string          `json:"userId"`
	WalletID      string          `json:"walletId"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID string          `json:"transactionId"`
}

// InsufficientBalanceData is the payload of wallet.insufficient_balance events.
type InsufficientBalanceData struct {
	UserID          string          `json:"userId"`
	WalletID        string          `json:"walletId"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	CurrentBalance  decimal.Decimal `json:"currentBalance"`
}
