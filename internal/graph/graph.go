// Package graph mirrors saved transactions into Neo4j for relationship
// analytics. The mirror is write-only and best-effort: the relational store
// stays authoritative and mirror failures never fail a save.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbd888/fraudguard/internal/circuitbreaker"
	"github.com/mbd888/fraudguard/internal/retry"
)

// UnknownAccount is used when a transaction has no sender account.
const UnknownAccount = "unknown-account"

// Transaction is the subset of a saved transaction the graph keeps.
type Transaction struct {
	ID          string
	AccountID   string
	Amount      float64
	Prediction  string
	Probability float64
	FraudScore  float64
	Timestamp   string // ISO-8601
}

// Mirror replicates transactions into a graph store.
type Mirror interface {
	MirrorTransaction(ctx context.Context, tx *Transaction) error
	Close(ctx context.Context) error
}

// NopMirror is used when no graph store is configured.
type NopMirror struct{}

func (NopMirror) MirrorTransaction(context.Context, *Transaction) error { return nil }
func (NopMirror) Close(context.Context) error                           { return nil }

// BreakerMirror stops sending writes to a failing graph store until its
// circuit breaker lets a probe through.
type BreakerMirror struct {
	Mirror
	breaker *circuitbreaker.Breaker
}

// WithBreaker guards m with b.
func WithBreaker(m Mirror, b *circuitbreaker.Breaker) *BreakerMirror {
	return &BreakerMirror{Mirror: m, breaker: b}
}

// MirrorTransaction returns circuitbreaker.ErrOpen without calling the
// underlying mirror while the circuit is open.
func (m *BreakerMirror) MirrorTransaction(ctx context.Context, tx *Transaction) error {
	return m.breaker.Execute(func() error {
		return m.Mirror.MirrorTransaction(ctx, tx)
	})
}

var constraints = []string{
	"CREATE CONSTRAINT transaction_id IF NOT EXISTS FOR (t:Transaction) REQUIRE t.id IS UNIQUE",
	"CREATE CONSTRAINT account_id IF NOT EXISTS FOR (a:Account) REQUIRE a.id IS UNIQUE",
}

const mirrorCypher = `
MERGE (a:Account {id: $account_id})
  ON CREATE SET a.created = datetime()
CREATE (t:Transaction {
    id: $id,
    amount: $amount,
    prediction: $prediction,
    probability: $probability,
    fraud_score: $fraud_score,
    timestamp: datetime($timestamp),
    created_at: datetime()
})
MERGE (a)-[:MADE]->(t)
RETURN t.id AS saved_id`

// runFunc executes one write statement.
type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Neo4jMirror writes transactions to Neo4j through an explicitly owned driver.
type Neo4jMirror struct {
	driver   neo4j.DriverWithContext
	database string
	run      runFunc
}

// Option configures a Neo4jMirror.
type Option func(*Neo4jMirror)

// WithDatabase targets a named database instead of the server default.
func WithDatabase(name string) Option {
	return func(m *Neo4jMirror) { m.database = name }
}

// Open connects to Neo4j and prepares the schema. The returned mirror owns
// the driver and closes it on Close.
func Open(ctx context.Context, uri, user, password string, opts ...Option) (*Neo4jMirror, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	m, err := NewNeo4jMirror(ctx, driver, opts...)
	if err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return m, nil
}

// NewNeo4jMirror verifies connectivity and creates the uniqueness
// constraints on Transaction.id and Account.id.
func NewNeo4jMirror(ctx context.Context, driver neo4j.DriverWithContext, opts ...Option) (*Neo4jMirror, error) {
	m := &Neo4jMirror{driver: driver}
	for _, opt := range opts {
		opt(m)
	}
	m.run = m.execute

	// The server may still be starting when compose brings everything up.
	if err := retry.Do(ctx, retry.Default, driver.VerifyConnectivity); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	if err := m.ensureConstraints(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Neo4jMirror) ensureConstraints(ctx context.Context) error {
	for _, c := range constraints {
		if err := m.run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	return nil
}

func (m *Neo4jMirror) execute(ctx context.Context, cypher string, params map[string]any) error {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithWritersRouting()}
	if m.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(m.database))
	}
	_, err := neo4j.ExecuteQuery(ctx, m.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	return err
}

// MirrorTransaction merges the sender account and creates the transaction
// node linked by a MADE relationship. A repeated id violates the uniqueness
// constraint and is returned as an error.
func (m *Neo4jMirror) MirrorTransaction(ctx context.Context, tx *Transaction) error {
	if err := m.run(ctx, mirrorCypher, params(tx)); err != nil {
		return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (m *Neo4jMirror) Ping(ctx context.Context) error {
	return m.driver.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (m *Neo4jMirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

func params(tx *Transaction) map[string]any {
	account := tx.AccountID
	if account == "" {
		account = UnknownAccount
	}
	prediction := tx.Prediction
	if prediction == "" {
		prediction = "Unknown"
	}
	return map[string]any{
		"account_id":  account,
		"id":          tx.ID,
		"amount":      tx.Amount,
		"prediction":  prediction,
		"probability": tx.Probability,
		"fraud_score": tx.FraudScore,
		"timestamp":   tx.Timestamp,
	}
}
