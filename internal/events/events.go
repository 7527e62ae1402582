// Package events publishes transaction lifecycle events for downstream
// review systems. Publication is best-effort: callers log and count
// failures, they never roll back the primary write.
package events

import (
	"context"
	"time"

	"github.com/mbd888/fraudguard/internal/idgen"
)

// Type identifies what happened to a transaction.
type Type string

const (
	TransactionSaved    Type = "transaction_saved"
	TransactionDeleted  Type = "transaction_deleted"
	TransactionsCleared Type = "transactions_cleared"
)

// Event describes one change to the transaction store.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FromAccount   string    `json:"from_account,omitempty"`
	ToAccount     string    `json:"to_account,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Prediction    string    `json:"prediction,omitempty"`
	Probability   float64   `json:"probability,omitempty"`
	FraudScore    float64   `json:"fraud_score,omitempty"`
	RiskFactors   []string  `json:"risk_factors,omitempty"`
	DeletedCount  int64     `json:"deleted_count,omitempty"`
}

// New returns an event of the given type stamped with a fresh id and time.
func New(t Type) Event {
	return Event{
		ID:         idgen.WithPrefix("evt_"),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the partitioning key: the transaction id, or the event id for
// store-wide events.
func (e Event) Key() string {
	if e.TransactionID != "" {
		return e.TransactionID
	}
	return e.ID
}

// Publisher delivers events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }
