package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed transaction store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// columns in scan order. "timestamp" is quoted because it is a type keyword.
var columns = []string{
	"id", "from_account", "to_account", "transaction_amount",
	"prediction", "probability", "fraud_score", `"timestamp"`,
	"transaction_frequency", "recipient_verification_status",
	"recipient_blacklist_status", "device_fingerprinting", "vpn_proxy_usage",
	"geo_location_flags", "behavioral_biometrics", "time_since_last_transaction",
	"social_trust_score", "account_age", "high_risk_transaction_times",
	"past_fraudulent_behavior", "location_inconsistent",
	"normalized_transaction_amount", "transaction_context_anomalies",
	"fraud_complaints_count", "merchant_category_mismatch",
	"user_daily_limit_exceeded", "recent_high_value_flags", "risk_factors",
}

var (
	selectColumns = strings.Join(columns, ", ")
	upsertSQL     = buildUpsert()
)

func buildUpsert() string {
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		if c != "id" {
			updates = append(updates, c+" = EXCLUDED."+c)
		}
	}
	return "INSERT INTO transactions (" + selectColumns + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (id) DO UPDATE SET " +
		strings.Join(updates, ", ") + ", updated_at = NOW()"
}

// Migrate creates the transactions table for development start-up. Production
// schemas are managed by the goose migrations in migrations/.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id                             TEXT PRIMARY KEY,
			from_account                   TEXT NOT NULL DEFAULT '',
			to_account                     TEXT NOT NULL DEFAULT '',
			transaction_amount             DOUBLE PRECISION NOT NULL DEFAULT 0,
			prediction                     TEXT NOT NULL DEFAULT '',
			probability                    DOUBLE PRECISION NOT NULL DEFAULT 0,
			fraud_score                    DOUBLE PRECISION NOT NULL DEFAULT 0,
			"timestamp"                    TEXT COLLATE "C" NOT NULL,
			transaction_frequency          INTEGER NOT NULL DEFAULT 0,
			recipient_verification_status  TEXT NOT NULL DEFAULT 'verified',
			recipient_blacklist_status     BOOLEAN NOT NULL DEFAULT FALSE,
			device_fingerprinting          BOOLEAN NOT NULL DEFAULT FALSE,
			vpn_proxy_usage                BOOLEAN NOT NULL DEFAULT FALSE,
			geo_location_flags             TEXT NOT NULL DEFAULT 'normal',
			behavioral_biometrics          DOUBLE PRECISION NOT NULL DEFAULT 0,
			time_since_last_transaction    DOUBLE PRECISION NOT NULL DEFAULT 0,
			social_trust_score             INTEGER NOT NULL DEFAULT 50,
			account_age                    DOUBLE PRECISION NOT NULL DEFAULT 1,
			high_risk_transaction_times    BOOLEAN NOT NULL DEFAULT FALSE,
			past_fraudulent_behavior       BOOLEAN NOT NULL DEFAULT FALSE,
			location_inconsistent          BOOLEAN NOT NULL DEFAULT FALSE,
			normalized_transaction_amount  DOUBLE PRECISION NOT NULL DEFAULT 0,
			transaction_context_anomalies  DOUBLE PRECISION NOT NULL DEFAULT 0,
			fraud_complaints_count         INTEGER NOT NULL DEFAULT 0,
			merchant_category_mismatch     BOOLEAN NOT NULL DEFAULT FALSE,
			user_daily_limit_exceeded      BOOLEAN NOT NULL DEFAULT FALSE,
			recent_high_value_flags        BOOLEAN NOT NULL DEFAULT FALSE,
			risk_factors                   TEXT[] NOT NULL DEFAULT '{}',
			created_at                     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at                     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions("timestamp" DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_prediction ON transactions(prediction);
	`)
	return err
}

// Upsert inserts tx or fully replaces the row with the same id
func (p *PostgresStore) Upsert(ctx context.Context, tx *Transaction) error {
	riskFactors := tx.RiskFactors
	if riskFactors == nil {
		riskFactors = []string{}
	}
	_, err := p.db.ExecContext(ctx, upsertSQL,
		tx.ID, tx.FromAccount, tx.ToAccount, tx.TransactionAmount,
		string(tx.Prediction), tx.Probability, tx.FraudScore, tx.Timestamp,
		tx.TransactionFrequency, string(tx.RecipientVerificationStatus),
		bool(tx.RecipientBlacklistStatus), bool(tx.DeviceFingerprinting), bool(tx.VPNProxyUsage),
		string(tx.GeoLocationFlags), tx.BehavioralBiometrics, tx.TimeSinceLastTransaction,
		tx.SocialTrustScore, tx.AccountAge, bool(tx.HighRiskTransactionTimes),
		bool(tx.PastFraudulentBehavior), bool(tx.LocationInconsistent),
		tx.NormalizedTransactionAmount, tx.TransactionContextAnomalies,
		tx.FraudComplaintsCount, bool(tx.MerchantCategoryMismatch),
		bool(tx.UserDailyLimitExceeded), bool(tx.RecentHighValueFlags), pq.Array(riskFactors),
	)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Get retrieves a transaction by ID
func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM transactions WHERE id = $1", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// List returns transactions newest first with optional filters
func (p *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Transaction, error) {
	opts = opts.normalized()

	query := "SELECT " + selectColumns + " FROM transactions WHERE 1=1"
	args := []interface{}{}
	n := 1

	if opts.Prediction != "" {
		query += " AND prediction = $" + strconv.Itoa(n)
		args = append(args, opts.Prediction)
		n++
	}
	if opts.StartDate != "" {
		query += ` AND "timestamp" >= $` + strconv.Itoa(n)
		args = append(args, opts.StartDate)
		n++
	}
	if opts.EndDate != "" {
		query += ` AND "timestamp" <= $` + strconv.Itoa(n)
		args = append(args, opts.EndDate)
		n++
	}

	query += ` ORDER BY "timestamp" DESC, id DESC LIMIT $` + strconv.Itoa(n) + " OFFSET $" + strconv.Itoa(n+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	result := []*Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// Stats counts all and fraudulent transactions in one query
func (p *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var total, fraud int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE prediction = 'Fraudulent')
		FROM transactions
	`).Scan(&total, &fraud)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	return NewStats(total, fraud), nil
}

// Delete removes one transaction; it reports whether a row existed
func (p *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every transaction and returns how many were removed
func (p *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, "DELETE FROM transactions")
	if err != nil {
		return 0, fmt.Errorf("delete all transactions: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks database connectivity
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	tx := &Transaction{}
	var riskFactors pq.StringArray
	err := s.Scan(
		&tx.ID, &tx.FromAccount, &tx.ToAccount, &tx.TransactionAmount,
		(*string)(&tx.Prediction), &tx.Probability, &tx.FraudScore, &tx.Timestamp,
		&tx.TransactionFrequency, (*string)(&tx.RecipientVerificationStatus),
		(*bool)(&tx.RecipientBlacklistStatus), (*bool)(&tx.DeviceFingerprinting), (*bool)(&tx.VPNProxyUsage),
		(*string)(&tx.GeoLocationFlags), &tx.BehavioralBiometrics, &tx.TimeSinceLastTransaction,
		&tx.SocialTrustScore, &tx.AccountAge, (*bool)(&tx.HighRiskTransactionTimes),
		(*bool)(&tx.PastFraudulentBehavior), (*bool)(&tx.LocationInconsistent),
		&tx.NormalizedTransactionAmount, &tx.TransactionContextAnomalies,
		&tx.FraudComplaintsCount, (*bool)(&tx.MerchantCategoryMismatch),
		(*bool)(&tx.UserDailyLimitExceeded), (*bool)(&tx.RecentHighValueFlags), &riskFactors,
	)
	if err != nil {
		return nil, err
	}
	tx.RiskFactors = []string(riskFactors)
	if tx.RiskFactors == nil {
		tx.RiskFactors = []string{}
	}
	return tx, nil
}
