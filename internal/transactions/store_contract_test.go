package transactions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudguard/internal/risk"
)

func newTestTx(id, ts string, prediction risk.Prediction) *Transaction {
	f := risk.DefaultFeatures()
	f.TransactionAmount = 250
	return &Transaction{
		ID:            id,
		FromAccount:   "acct-from",
		ToAccount:     "acct-to",
		FeatureRecord: f,
		Classification: risk.Classification{
			Prediction:  prediction,
			Probability: 0.3,
			FraudScore:  2.5,
			RiskFactors: []string{"Very recent transaction"},
		},
		Timestamp: ts,
	}
}

func seed(t *testing.T, s Store, txns ...*Transaction) {
	t.Helper()
	for _, tx := range txns {
		require.NoError(t, s.Upsert(context.Background(), tx))
	}
}

func ids(txns []*Transaction) []string {
	out := make([]string, len(txns))
	for i, tx := range txns {
		out[i] = tx.ID
	}
	return out
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("upsert and get", func(t *testing.T) {
		s := newStore(t)
		tx := newTestTx("txn-1", "2024-01-01T10:00:00.000Z", risk.PredictionFraudulent)
		tx.VPNProxyUsage = true
		tx.GeoLocationFlags = risk.GeoHighRisk
		tx.RecipientVerificationStatus = risk.RecipientSuspicious
		tx.FraudComplaintsCount = 3
		tx.RiskFactors = []string{"VPN/Proxy usage", "High-risk location"}
		seed(t, s, tx)

		got, err := s.Get(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, tx, got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert replaces every field", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, newTestTx("txn-1", "2024-01-01T10:00:00.000Z", risk.PredictionFraudulent))

		replacement := newTestTx("txn-1", "2024-02-01T10:00:00.000Z", risk.PredictionLegitimate)
		replacement.FromAccount = "other"
		replacement.RiskFactors = []string{}
		seed(t, s, replacement)

		got, err := s.Get(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, risk.PredictionLegitimate, got.Prediction)
		assert.Equal(t, "other", got.FromAccount)
		assert.Equal(t, "2024-02-01T10:00:00.000Z", got.Timestamp)
		assert.NotNil(t, got.RiskFactors)
		assert.Empty(t, got.RiskFactors)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Total)
	})

	t.Run("list newest first", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			newTestTx("a", "2024-01-01T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("c", "2024-01-03T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("b", "2024-01-02T00:00:00.000Z", risk.PredictionFraudulent),
		)

		got, err := s.List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, ids(got))
	})

	t.Run("list filters", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			newTestTx("a", "2024-01-01T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("b", "2024-01-02T00:00:00.000Z", risk.PredictionFraudulent),
			newTestTx("c", "2024-01-03T00:00:00.000Z", risk.PredictionFraudulent),
			newTestTx("d", "2024-01-04T00:00:00.000Z", risk.PredictionLegitimate),
		)

		got, err := s.List(ctx, ListOptions{Prediction: "Fraudulent"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(got))

		// Bounds are inclusive.
		got, err = s.List(ctx, ListOptions{
			StartDate: "2024-01-02T00:00:00.000Z",
			EndDate:   "2024-01-03T00:00:00.000Z",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(got))

		// A date-only upper bound sorts before any timestamp on that day.
		got, err = s.List(ctx, ListOptions{EndDate: "2024-01-03"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ids(got))

		got, err = s.List(ctx, ListOptions{Prediction: "Legitimate", StartDate: "2024-01-02"})
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, ids(got))

		got, err = s.List(ctx, ListOptions{Prediction: "Unknown"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("list pages", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			newTestTx("a", "2024-01-01T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("b", "2024-01-02T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("c", "2024-01-03T00:00:00.000Z", risk.PredictionLegitimate),
		)

		got, err := s.List(ctx, ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(got))

		got, err = s.List(ctx, ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(got))

		got, err = s.List(ctx, ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("stats", func(t *testing.T) {
		s := newStore(t)
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &Stats{}, stats)

		seed(t, s,
			newTestTx("a", "2024-01-01T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("b", "2024-01-02T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("c", "2024-01-03T00:00:00.000Z", risk.PredictionFraudulent),
		)
		stats, err = s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &Stats{Total: 3, Fraud: 1, Legitimate: 2, Accuracy: 66.67}, stats)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, newTestTx("a", "2024-01-01T00:00:00.000Z", risk.PredictionLegitimate))

		removed, err := s.Delete(ctx, "a")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.Delete(ctx, "a")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete all", func(t *testing.T) {
		s := newStore(t)
		seed(t, s,
			newTestTx("a", "2024-01-01T00:00:00.000Z", risk.PredictionLegitimate),
			newTestTx("b", "2024-01-02T00:00:00.000Z", risk.PredictionFraudulent),
		)

		n, err := s.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
