package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/rabbitmq"
	"go.uber.org/zap"
)

// PayoutConfirmer applies a gateway result to a pending cashout.
type PayoutConfirmer interface {
	ConfirmPayout(ctx context.Context, txID uuid.UUID, succeeded bool, reason string) (*domain.Transaction, error)
}

// PayoutStatusConsumer handles payout.status.* messages from the gateway.
type PayoutStatusConsumer struct {
	wallet PayoutConfirmer
	logger *zap.Logger
}

func NewPayoutStatusConsumer(wallet PayoutConfirmer, logger *zap.Logger) *PayoutStatusConsumer {
	return &PayoutStatusConsumer{wallet: wallet, logger: logger.With(zap.String("component", "payout-consumer"))}
}

// Handlers maps each payout routing key to its handler. The routing key
// supplies the status when the message body carries none.
func (c *PayoutStatusConsumer) Handlers() map[string]rabbitmq.Handler {
	return map[string]rabbitmq.Handler{
		domain.RoutingPayoutSucceeded: c.handlerFor("successful"),
		domain.RoutingPayoutFailed:    c.handlerFor("failed"),
	}
}

func (c *PayoutStatusConsumer) handlerFor(fallbackStatus string) rabbitmq.Handler {
	return func(ctx context.Context, d rabbitmq.Delivery) rabbitmq.Settlement {
		return c.handle(ctx, d, fallbackStatus)
	}
}

// HandleMessage processes one delivery whose body names its own status.
func (c *PayoutStatusConsumer) HandleMessage(ctx context.Context, d rabbitmq.Delivery) rabbitmq.Settlement {
	return c.handle(ctx, d, "")
}

func (c *PayoutStatusConsumer) handle(ctx context.Context, d rabbitmq.Delivery, fallbackStatus string) rabbitmq.Settlement {
	log := c.logger.With(zap.String("message_id", d.MessageID), zap.String("routing_key", d.RoutingKey))

	var event domain.PayoutStatusEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Warn("failed to unmarshal payload", zap.Error(err))
		return rabbitmq.Discard
	}
	if event.TransactionID == uuid.Nil {
		log.Warn("missing transaction id in payout event", zap.String("event_id", event.EventID))
		return rabbitmq.Discard
	}
	if strings.TrimSpace(event.Status) == "" {
		event.Status = fallbackStatus
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Error("processing error for payout event",
			zap.String("transaction_id", event.TransactionID.String()),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		return rabbitmq.Requeue
	}
	return rabbitmq.Ack
}

func (c *PayoutStatusConsumer) processEvent(ctx context.Context, event domain.PayoutStatusEvent) error {
	succeeded, settled := PayoutOutcome(event.Status)
	if !settled {
		return nil
	}

	_, err := c.wallet.ConfirmPayout(ctx, event.TransactionID, succeeded, event.Reason)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTransactionNotFound):
		c.logger.Warn("no transaction found for payout event; acknowledging", zap.String("transaction_id", event.TransactionID.String()))
		return nil
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidTransaction):
		// Conflicting result for an already settled cashout; redelivery will not help.
		c.logger.Error("payout event conflicts with ledger state; acknowledging",
			zap.String("transaction_id", event.TransactionID.String()),
			zap.String("status", event.Status),
			zap.Error(err),
		)
		return nil
	default:
		return fmt.Errorf("confirm payout: %w", err)
	}
}

// PayoutOutcome maps a gateway status to a ledger result. settled is false
// for in-flight or unknown statuses, which leave the cashout PENDING.
func PayoutOutcome(status string) (succeeded, settled bool) {
	switch normalizePayoutStatus(status) {
	case "completed":
		return true, true
	case "failed":
		return false, true
	}
	return false, false
}

func normalizePayoutStatus(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	switch status {
	case "successful", "success", "completed":
		return "completed"
	case "failed", "failure", "reversed":
		return "failed"
	case "initiated", "processing", "pending":
		return "processing"
	default:
		return status
	}
}
