package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/rabbitmq"
	"go.uber.org/zap"
)

type payoutConfirmerStub struct {
	err       error
	calls     int
	txID      uuid.UUID
	succeeded bool
	reason    string
}

func (s *payoutConfirmerStub) ConfirmPayout(ctx context.Context, txID uuid.UUID, succeeded bool, reason string) (*domain.Transaction, error) {
	s.calls++
	s.txID = txID
	s.succeeded = succeeded
	s.reason = reason
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Transaction{ID: txID}, nil
}

func payoutDelivery(t *testing.T, event domain.PayoutStatusEvent) rabbitmq.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return rabbitmq.Delivery{RoutingKey: domain.RoutingPayoutFailed, MessageID: event.EventID, Body: body}
}

func TestPayoutConsumer_MapsStatuses(t *testing.T) {
	tests := []struct {
		status        string
		wantCalled    bool
		wantSucceeded bool
	}{
		{status: "successful", wantCalled: true, wantSucceeded: true},
		{status: "COMPLETED", wantCalled: true, wantSucceeded: true},
		{status: "failed", wantCalled: true, wantSucceeded: false},
		{status: "reversed", wantCalled: true, wantSucceeded: false},
		{status: "processing", wantCalled: false},
		{status: "something-new", wantCalled: false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			stub := &payoutConfirmerStub{}
			consumer := NewPayoutStatusConsumer(stub, zap.NewNop())
			txID := uuid.New()

			got := consumer.HandleMessage(context.Background(), payoutDelivery(t, domain.PayoutStatusEvent{TransactionID: txID, Status: tt.status, Reason: "bank said no"}))
			if got != rabbitmq.Ack {
				t.Fatalf("expected message to be acked, got %s", got)
			}
			if (stub.calls == 1) != tt.wantCalled {
				t.Fatalf("expected called=%v, got %d calls", tt.wantCalled, stub.calls)
			}
			if tt.wantCalled && (stub.succeeded != tt.wantSucceeded || stub.txID != txID) {
				t.Fatalf("unexpected confirm call %+v", stub)
			}
		})
	}
}

func TestPayoutConsumer_RoutingKeySuppliesMissingStatus(t *testing.T) {
	stub := &payoutConfirmerStub{}
	consumer := NewPayoutStatusConsumer(stub, zap.NewNop())
	ctx := context.Background()
	handlers := consumer.Handlers()

	handler, ok := handlers[domain.RoutingPayoutFailed]
	if !ok {
		t.Fatalf("expected a handler for %s", domain.RoutingPayoutFailed)
	}
	if got := handler(ctx, payoutDelivery(t, domain.PayoutStatusEvent{TransactionID: uuid.New(), Reason: "closed account"})); got != rabbitmq.Ack {
		t.Fatalf("expected message to be acked, got %s", got)
	}
	if stub.calls != 1 || stub.succeeded || stub.reason != "closed account" {
		t.Fatalf("expected failure confirmation, got %+v", stub)
	}

	if got := handlers[domain.RoutingPayoutSucceeded](ctx, payoutDelivery(t, domain.PayoutStatusEvent{TransactionID: uuid.New()})); got != rabbitmq.Ack {
		t.Fatalf("expected message to be acked, got %s", got)
	}
	if stub.calls != 2 || !stub.succeeded {
		t.Fatalf("expected success confirmation, got %+v", stub)
	}
}

func TestPayoutConsumer_DiscardsPoisonMessages(t *testing.T) {
	stub := &payoutConfirmerStub{}
	consumer := NewPayoutStatusConsumer(stub, zap.NewNop())
	ctx := context.Background()

	if got := consumer.HandleMessage(ctx, rabbitmq.Delivery{Body: []byte("{not json")}); got != rabbitmq.Discard {
		t.Fatalf("expected malformed payload to be discarded, got %s", got)
	}
	if got := consumer.HandleMessage(ctx, payoutDelivery(t, domain.PayoutStatusEvent{Status: "successful"})); got != rabbitmq.Discard {
		t.Fatalf("expected payload without transaction id to be discarded, got %s", got)
	}
	if stub.calls != 0 {
		t.Fatalf("expected no confirm calls, got %d", stub.calls)
	}
}

func TestPayoutConsumer_RequeueOnlyTransientErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want rabbitmq.Settlement
	}{
		{name: "unknown transaction", err: domain.ErrTransactionNotFound, want: rabbitmq.Ack},
		{name: "conflicting result", err: domain.ErrInvalidTransition, want: rabbitmq.Ack},
		{name: "not a cashout", err: domain.ErrInvalidTransaction, want: rabbitmq.Ack},
		{name: "database down", err: errors.New("connection refused"), want: rabbitmq.Requeue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &payoutConfirmerStub{err: tt.err}
			consumer := NewPayoutStatusConsumer(stub, zap.NewNop())

			got := consumer.HandleMessage(context.Background(), payoutDelivery(t, domain.PayoutStatusEvent{TransactionID: uuid.New(), Status: "failed"}))
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPayoutConsumer_AppliesToLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "5000")
	entry, err := h.wallet.Cashout(ctx, id, sup(t, "100"))
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}

	consumer := NewPayoutStatusConsumer(h.wallet, zap.NewNop())
	d := payoutDelivery(t, domain.PayoutStatusEvent{TransactionID: entry.ID, Status: "failed", Reason: "invalid account"})
	if got := consumer.HandleMessage(ctx, d); got != rabbitmq.Ack {
		t.Fatalf("expected failure to be acked, got %s", got)
	}
	d.Redelivered = true
	if got := consumer.HandleMessage(ctx, d); got != rabbitmq.Ack {
		t.Fatalf("expected replay to be acked, got %s", got)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "500")) {
		t.Fatalf("expected balance restored to 500, got %s", got)
	}
}

func TestPayoutConsumer_StopsWithCancelledContext(t *testing.T) {
	stub := &payoutConfirmerStub{err: context.Canceled}
	consumer := NewPayoutStatusConsumer(stub, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := consumer.HandleMessage(ctx, payoutDelivery(t, domain.PayoutStatusEvent{TransactionID: uuid.New(), Status: "successful"}))
	if got != rabbitmq.Requeue {
		t.Fatalf("expected an interrupted confirmation to be requeued, got %s", got)
	}
}
