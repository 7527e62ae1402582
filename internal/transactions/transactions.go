// Package transactions persists scored transactions and serves the fraud
// review API.
//
// A Transaction is a Feature Record plus its Classification, keyed by id.
// Saving an existing id fully replaces the previous record. Listing is
// newest-first with inclusive string bounds on the ISO-8601 timestamp.
package transactions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/validation"
)

var (
	ErrNotFound = errors.New("transaction not found")
)

// Listing defaults.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// TimestampLayout is the ISO-8601 form used for generated timestamps. It is
// fixed width so lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Transaction is a persisted, scored transaction.
type Transaction struct {
	ID          string `json:"id"`
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	risk.FeatureRecord
	risk.Classification
	Timestamp string `json:"timestamp"`
}

// ListOptions filters List. Zero values mean "no filter"; bounds are
// inclusive and compared as strings.
type ListOptions struct {
	Prediction string
	StartDate  string
	EndDate    string
	Limit      int
	Offset     int
}

// Stats aggregates the store. The JSON keys match what the dashboard reads.
type Stats struct {
	Total      int64   `json:"total"`
	Fraud      int64   `json:"frauds"`
	Legitimate int64   `json:"legitimate"`
	Accuracy   float64 `json:"accuracy"`
}

// Store persists transactions. Every method is a single round trip; callers
// must not assume atomicity across calls.
type Store interface {
	Upsert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, opts ListOptions) ([]*Transaction, error)
	Stats(ctx context.Context) (*Stats, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// NewStats derives legitimate count and accuracy from the raw counts.
func NewStats(total, fraud int64) *Stats {
	s := &Stats{Total: total, Fraud: fraud, Legitimate: total - fraud}
	if total > 0 {
		s.Accuracy = round2(float64(s.Legitimate) / float64(total) * 100)
	}
	return s
}

// round2 rounds to two decimals using the exact binary value, so ties such
// as 3.125 go to the even digit.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

// NewID returns a timestamp-derived transaction id.
func NewID(now time.Time) string {
	return "txn-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ParseTimestamp reads an RFC 3339 timestamp with optional fractional
// seconds and any zone offset.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// clone returns a deep copy so callers never share slices with a store.
func (t *Transaction) clone() *Transaction {
	c := *t
	c.RiskFactors = make([]string, len(t.RiskFactors))
	copy(c.RiskFactors, t.RiskFactors)
	return &c
}

// DecodeTransaction coerces a loosely typed save request. Feature fields
// follow risk.DecodeFeatures; classification fields are optional and, when
// absent, the service scores the features itself.
func DecodeTransaction(data map[string]any) (*Transaction, error) {
	features, err := risk.DecodeFeatures(data)
	var errs validation.ValidationErrors
	if err != nil {
		if !errors.As(err, &errs) {
			return nil, err
		}
	}

	tx := &Transaction{FeatureRecord: features}
	d := validation.NewFieldDecoder(data)
	d.String("id", &tx.ID)
	d.String("from_account", &tx.FromAccount)
	d.String("to_account", &tx.ToAccount)
	d.String("timestamp", &tx.Timestamp)
	tx.FromAccount = validation.SanitizeString(tx.FromAccount, validation.MaxStringLength)
	tx.ToAccount = validation.SanitizeString(tx.ToAccount, validation.MaxStringLength)

	var prediction string
	d.String("prediction", &prediction)
	tx.Prediction = risk.Prediction(prediction)
	d.Float("probability", &tx.Probability)
	d.Float("fraud_score", &tx.FraudScore)
	d.Strings("risk_factors", &tx.RiskFactors)

	if derr := d.Err(); derr != nil {
		errs = append(errs, derr.(validation.ValidationErrors)...)
	}
	errs = append(errs, validation.Validate(
		validation.ValidID("id", tx.ID),
		validation.MaxLength("from_account", tx.FromAccount, validation.MaxIDLength),
		validation.MaxLength("to_account", tx.ToAccount, validation.MaxIDLength),
		validPrediction(tx.Prediction),
	)...)

	if tx.Timestamp != "" {
		ts, perr := ParseTimestamp(tx.Timestamp)
		if perr != nil {
			errs.Add("timestamp", "must be an ISO-8601 timestamp such as 2024-01-02T15:04:05.000Z")
		} else {
			tx.Timestamp = FormatTimestamp(ts)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return tx, nil
}

func validPrediction(p risk.Prediction) func() *validation.ValidationError {
	return func() *validation.ValidationError {
		switch p {
		case "", risk.PredictionFraudulent, risk.PredictionLegitimate:
			return nil
		}
		return &validation.ValidationError{Field: "prediction", Message: "must be Fraudulent or Legitimate"}
	}
}
