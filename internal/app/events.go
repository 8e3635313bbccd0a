package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/metrics"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/rabbitmq"
	"go.uber.org/zap"
)

// LedgerObserver receives every committed append.
type LedgerObserver interface {
	Observe(event domain.LedgerEvent)
}

// Events fans committed changes out to in-process observers and the broker.
// Publishing is best effort: a broker failure never fails the operation that
// already committed.
type Events struct {
	publisher rabbitmq.Publisher
	exchange  string
	logger    *zap.Logger
	observers []LedgerObserver
}

// NewEvents returns a fan-out publishing to exchange. A nil publisher disables the broker leg.
func NewEvents(publisher rabbitmq.Publisher, exchange string, logger *zap.Logger) *Events {
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	}
	return &Events{
		publisher: publisher,
		exchange:  exchange,
		logger:    logger.With(zap.String("component", "events")),
	}
}

// Subscribe adds an in-process observer. It must be called before traffic starts.
func (e *Events) Subscribe(o LedgerObserver) {
	e.observers = append(e.observers, o)
}

// Appended notifies observers and publishes ledger.transaction.appended.
func (e *Events) Appended(ctx context.Context, entry domain.Transaction, balanceAfter decimal.Decimal) {
	if e == nil {
		return
	}
	metrics.RecordLedgerAppend(string(entry.Type), string(entry.Status))
	event := domain.LedgerEvent{Transaction: entry, BalanceAfter: balanceAfter, OccurredAt: time.Now().UTC()}
	for _, o := range e.observers {
		o.Observe(event)
	}
	e.Publish(ctx, domain.RoutingLedgerAppended, event)
}

// Publish sends body with routingKey and logs failures.
func (e *Events) Publish(ctx context.Context, routingKey string, body interface{}) {
	if e == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, e.exchange, routingKey, body); err != nil {
		e.logger.Warn("event publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
