package traces

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_NoEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	shutdown, err := Init(context.Background(), "", "test", logger)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartSpan_Attributes(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSpan(context.Background(), "risk.Score", TransactionID("txn-1"), Score(6.5))
	span.SetAttributes(Prediction("Fraudulent"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		got[kv.Key] = kv.Value
	}
	if got["transaction.id"].AsString() != "txn-1" {
		t.Errorf("transaction.id = %v", got["transaction.id"])
	}
	if got["fraud.score"].AsFloat64() != 6.5 {
		t.Errorf("fraud.score = %v", got["fraud.score"])
	}
	if got["fraud.prediction"].AsString() != "Fraudulent" {
		t.Errorf("fraud.prediction = %v", got["fraud.prediction"])
	}
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	_, ok := StartSpan(context.Background(), "ok")
	RecordError(ok, nil)
	ok.End()

	_, failed := StartSpan(context.Background(), "failed")
	RecordError(failed, errors.New("db down"))
	failed.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Unset {
		t.Errorf("nil error should leave status unset, got %v", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "db down" {
		t.Errorf("unexpected status %+v", spans[1].Status())
	}
}
