package transactions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/fraudguard/internal/events"
	"github.com/mbd888/fraudguard/internal/graph"
	"github.com/mbd888/fraudguard/internal/logging"
	"github.com/mbd888/fraudguard/internal/metrics"
	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/traces"
)

// DefaultMirrorTimeout bounds each background mirror and publish call.
const DefaultMirrorTimeout = 5 * time.Second

// Broadcaster pushes events to live subscribers without blocking.
type Broadcaster interface {
	Broadcast(ev events.Event)
}

// Service implements transaction business logic on top of a Store.
type Service struct {
	store         Store
	mirror        graph.Mirror
	publisher     events.Publisher
	broadcaster   Broadcaster
	logger        *slog.Logger
	mirrorTimeout time.Duration
	now           func() time.Time

	bg sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMirror replicates every saved transaction into a graph store.
func WithMirror(m graph.Mirror) ServiceOption {
	return func(s *Service) { s.mirror = m }
}

// WithPublisher emits lifecycle events to a broker.
func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithBroadcaster forwards lifecycle events to live subscribers.
func WithBroadcaster(b Broadcaster) ServiceOption {
	return func(s *Service) { s.broadcaster = b }
}

// WithMirrorTimeout overrides DefaultMirrorTimeout.
func WithMirrorTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.mirrorTimeout = d
		}
	}
}

// NewService creates a transaction service. Without options the mirror and
// publisher are no-ops.
func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:         store,
		mirror:        graph.NopMirror{},
		publisher:     events.NopPublisher{},
		logger:        logger,
		mirrorTimeout: DefaultMirrorTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict scores a feature record.
func (s *Service) Predict(ctx context.Context, f risk.FeatureRecord) risk.Classification {
	_, span := traces.StartSpan(ctx, "transactions.Predict", traces.Amount(f.TransactionAmount))
	defer span.End()

	c := risk.Score(f)
	span.SetAttributes(traces.Prediction(string(c.Prediction)), traces.Score(c.FraudScore))

	metrics.PredictionsTotal.WithLabelValues(string(c.Prediction)).Inc()
	metrics.FraudScore.Observe(c.FraudScore)
	return c
}

// Save persists tx, filling in id and timestamp when absent and scoring the
// features when no prediction was supplied. Side effects (graph mirror,
// broker event, live broadcast) run only after the write succeeds and never
// fail the save.
func (s *Service) Save(ctx context.Context, tx *Transaction) (_ *Transaction, err error) {
	ctx, span := traces.StartSpan(ctx, "transactions.Save")
	defer span.End()
	defer func() { traces.RecordError(span, err) }()

	tx = tx.clone()
	now := s.now()
	if tx.ID == "" {
		tx.ID = NewID(now)
	}
	if tx.Timestamp == "" {
		tx.Timestamp = FormatTimestamp(now)
	}
	if tx.Prediction == "" {
		tx.Classification = s.Predict(ctx, tx.FeatureRecord)
	}
	ctx = logging.WithTransactionID(ctx, tx.ID)
	span.SetAttributes(
		traces.TransactionID(tx.ID),
		traces.Account(tx.FromAccount),
		traces.Prediction(string(tx.Prediction)),
	)

	start := time.Now()
	err = s.store.Upsert(ctx, tx)
	metrics.ObserveStore("upsert", start, &err)
	if err != nil {
		s.log(ctx).Error("failed to save transaction", "error", err)
		return nil, err
	}
	metrics.TransactionsSavedTotal.WithLabelValues(string(tx.Prediction)).Inc()

	ev := events.New(events.TransactionSaved)
	ev.TransactionID = tx.ID
	ev.FromAccount = tx.FromAccount
	ev.ToAccount = tx.ToAccount
	ev.Amount = tx.TransactionAmount
	ev.Prediction = string(tx.Prediction)
	ev.Probability = tx.Probability
	ev.FraudScore = tx.FraudScore
	ev.RiskFactors = append([]string(nil), tx.RiskFactors...)

	s.mirrorAsync(ctx, toGraph(tx))
	s.emit(ctx, ev)

	return tx.clone(), nil
}

// Get returns one transaction or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	start := time.Now()
	tx, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// A miss is not a store failure.
		metrics.ObserveStore("get", start, nil)
		return nil, ErrNotFound
	}
	metrics.ObserveStore("get", start, &err)
	return tx, err
}

// List returns transactions newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (_ []*Transaction, err error) {
	ctx, span := traces.StartSpan(ctx, "transactions.List")
	defer span.End()
	defer metrics.ObserveStore("list", time.Now(), &err)

	txns, err := s.store.List(ctx, opts)
	traces.RecordError(span, err)
	return txns, err
}

// Stats summarises the store.
func (s *Service) Stats(ctx context.Context) (_ *Stats, err error) {
	defer metrics.ObserveStore("stats", time.Now(), &err)
	return s.store.Stats(ctx)
}

// Delete removes one transaction. It returns ErrNotFound when nothing was
// removed.
func (s *Service) Delete(ctx context.Context, id string) error {
	start := time.Now()
	removed, err := s.store.Delete(ctx, id)
	metrics.ObserveStore("delete", start, &err)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}

	ev := events.New(events.TransactionDeleted)
	ev.TransactionID = id
	s.emit(ctx, ev)
	return nil
}

// DeleteAll empties the store and returns how many transactions were removed.
func (s *Service) DeleteAll(ctx context.Context) (_ int64, err error) {
	defer metrics.ObserveStore("delete_all", time.Now(), &err)

	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log(ctx).Warn("all transactions deleted", "count", n)

	ev := events.New(events.TransactionsCleared)
	ev.DeletedCount = n
	s.emit(ctx, ev)
	return n, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Wait blocks until in-flight mirror and publish calls finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) mirrorAsync(ctx context.Context, gtx *graph.Transaction) {
	logger := s.log(ctx)
	bgCtx := context.WithoutCancel(ctx)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(bgCtx, s.mirrorTimeout)
		defer cancel()
		if err := s.mirror.MirrorTransaction(ctx, gtx); err != nil {
			metrics.MirrorFailuresTotal.Inc()
			logger.Warn("graph mirror failed", "error", err)
		}
	}()
}

// emit broadcasts ev to live subscribers and publishes it in the background.
func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ev)
	}

	logger := s.log(ctx)
	bgCtx := context.WithoutCancel(ctx)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(bgCtx, s.mirrorTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			metrics.EventsFailedTotal.Inc()
			logger.Warn("event publish failed", "event_type", ev.Type, "event_id", ev.ID, "error", err)
			return
		}
		metrics.EventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()
	}()
}

// log returns the service logger tagged with the request and transaction ids.
func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.Annotate(ctx, s.logger)
}

func toGraph(tx *Transaction) *graph.Transaction {
	return &graph.Transaction{
		ID:          tx.ID,
		AccountID:   tx.FromAccount,
		Amount:      tx.TransactionAmount,
		Prediction:  string(tx.Prediction),
		Probability: tx.Probability,
		FraudScore:  tx.FraudScore,
		Timestamp:   tx.Timestamp,
	}
}
