// Package notify broadcasts domain events to the real-time gateway over a
// Redis channel. Publishing is fire and forget: a failed broadcast is logged
// and never affects the mutation that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldserve/fieldserve/internal/movement"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// Channel is the Redis pub/sub channel consumed by the notification gateway.
const Channel = "fieldserve.events"

// Broadcaster publishes domain events as JSON envelopes.
type Broadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBroadcaster constructs Broadcaster.
func NewBroadcaster(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, logger: logger}
}

type envelope struct {
	Name       string `json:"name"`
	CompanyID  int64  `json:"company_id"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}

// StockMoved implements stock.Notifier.
func (b *Broadcaster) StockMoved(ctx context.Context, evt stock.MovementPostedEvent) {
	name := "stock.received"
	switch evt.Kind {
	case stock.KindOutput:
		name = "stock.issued"
	case stock.KindReturnIn, stock.KindReturnOut:
		name = "stock.returned"
	case stock.KindAdjustment:
		name = "stock.adjusted"
	case stock.KindTransfer:
		name = "stock.transferred"
	}
	b.publish(ctx, envelope{Name: name, CompanyID: evt.CompanyID, OccurredAt: evt.PostedAt.Format(time.RFC3339), Payload: evt})
}

// MovementChanged implements movement.Notifier.
func (b *Broadcaster) MovementChanged(ctx context.Context, evt movement.TransitionEvent) {
	name := "movement.reserved"
	switch evt.Status {
	case movement.StatusIssued:
		name = "movement.issued"
	case movement.StatusReturned:
		name = "movement.returned"
	case movement.StatusUsed:
		name = "movement.used"
	case movement.StatusCancelled:
		name = "movement.cancelled"
	}
	b.publish(ctx, envelope{Name: name, CompanyID: evt.CompanyID, OccurredAt: evt.OccurredAt.Format(time.RFC3339), Payload: evt})
}

func (b *Broadcaster) publish(ctx context.Context, env envelope) {
	if b == nil || b.client == nil {
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		b.warn("marshal event", err)
		return
	}
	if err := b.client.Publish(ctx, Channel, body).Err(); err != nil {
		b.warn("publish event", err)
	}
}

func (b *Broadcaster) warn(msg string, err error) {
	if b.logger != nil {
		b.logger.Warn(msg, slog.Any("error", err))
	}
}
