package rabbitmq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type recordingAcknowledger struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	rejects []uint64
	requeue []bool
}

func (a *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects = append(a.rejects, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAcknowledger) settled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks) + len(a.nacks) + len(a.rejects)
}

func delivery(ack amqp091.Acknowledger, tag uint64, routingKey string) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		RoutingKey:   routingKey,
		MessageId:    "msg-1",
		Redelivered:  true,
		Body:         []byte(`{"status":"failed"}`),
	}
}

func TestConsumerSettlesBySettlement(t *testing.T) {
	tests := []struct {
		name        string
		routingKey  string
		settlement  Settlement
		wantAck     bool
		wantNack    bool
		wantReject  bool
		wantRequeue bool
	}{
		{name: "ack", routingKey: "payout.status.failed", settlement: Ack, wantAck: true},
		{name: "requeue", routingKey: "payout.status.failed", settlement: Requeue, wantNack: true, wantRequeue: true},
		{name: "discard", routingKey: "payout.status.failed", settlement: Discard, wantReject: true},
		{name: "unbound routing key", routingKey: "payout.status.unknown", settlement: Ack, wantReject: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Consumer{logger: zap.NewNop()}
			ack := &recordingAcknowledger{}
			var got Delivery
			handlers := map[string]Handler{
				"payout.status.failed": func(ctx context.Context, d Delivery) Settlement {
					got = d
					return tt.settlement
				},
			}

			c.deliver(context.Background(), handlers, delivery(ack, 7, tt.routingKey))

			if (len(ack.acks) == 1) != tt.wantAck || (len(ack.nacks) == 1) != tt.wantNack || (len(ack.rejects) == 1) != tt.wantReject {
				t.Fatalf("unexpected settlement %+v", ack)
			}
			if tt.wantNack || tt.wantReject {
				if ack.requeue[0] != tt.wantRequeue {
					t.Fatalf("expected requeue=%v, got %v", tt.wantRequeue, ack.requeue[0])
				}
			}
			if tt.routingKey == "payout.status.failed" {
				if got.MessageID != "msg-1" || !got.Redelivered || string(got.Body) != `{"status":"failed"}` {
					t.Fatalf("unexpected delivery passed to handler %+v", got)
				}
			}
		})
	}
}

func TestConsumerRunStopsWithContext(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	ack := &recordingAcknowledger{}
	msgs := make(chan amqp091.Delivery, 2)
	handled := make(chan struct{}, 2)
	handlers := map[string]Handler{
		"payout.status.successful": func(ctx context.Context, d Delivery) Settlement {
			handled <- struct{}{}
			return Ack
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.run(ctx, msgs, handlers)
		close(done)
	}()

	msgs <- delivery(ack, 1, "payout.status.successful")
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("expected the delivery to be handled")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected run to return after cancel")
	}
	if ack.settled() != 1 || len(ack.acks) != 1 {
		t.Fatalf("expected one ack, got %+v", ack)
	}
}

func TestConsumerRunStopsWhenChannelCloses(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	msgs := make(chan amqp091.Delivery)
	close(msgs)

	done := make(chan struct{})
	go func() {
		c.run(context.Background(), msgs, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected run to return when the delivery channel closes")
	}
}

func TestSettlementString(t *testing.T) {
	for s, want := range map[Settlement]string{Ack: "ack", Requeue: "requeue", Discard: "discard", Settlement(9): "settlement(9)"} {
		if got := s.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
