package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudguard/internal/risk"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_CopiesOnWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tx := newTestTx("txn-1", "2024-01-01T00:00:00.000Z", risk.PredictionFraudulent)
	require.NoError(t, s.Upsert(ctx, tx))
	tx.RiskFactors[0] = "mutated"
	tx.FromAccount = "mutated"

	got, err := s.Get(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "Very recent transaction", got.RiskFactors[0])
	assert.Equal(t, "acct-from", got.FromAccount)

	got.RiskFactors[0] = "mutated again"
	again, err := s.Get(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "Very recent transaction", again.RiskFactors[0])
}

func TestMemoryStore_TiesBrokenByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := "2024-01-01T00:00:00.000Z"
	seed(t, s,
		newTestTx("a", ts, risk.PredictionLegitimate),
		newTestTx("c", ts, risk.PredictionLegitimate),
		newTestTx("b", ts, risk.PredictionLegitimate),
	)

	got, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))
}

func TestMemoryStore_LimitClamped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxListLimit+5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Upsert(ctx, newTestTx(NewID(at), FormatTimestamp(at), risk.PredictionLegitimate)))
	}

	got, err := s.List(ctx, ListOptions{Limit: MaxListLimit * 2})
	require.NoError(t, err)
	assert.Len(t, got, MaxListLimit)
}
