package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/movement"
	"github.com/fieldserve/fieldserve/internal/stock"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, nil), client
}

func TestStockMovedPublishesEnvelope(t *testing.T) {
	b, client := newTestBroadcaster(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b.StockMoved(ctx, stock.MovementPostedEvent{
		Kind:      stock.KindOutput,
		CompanyID: 1,
		ItemID:    7,
		Quantity:  4,
		PostedAt:  time.Now().UTC(),
	})

	select {
	case msg := <-sub.Channel():
		var env struct {
			Name      string `json:"name"`
			CompanyID int64  `json:"company_id"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		require.Equal(t, "stock.issued", env.Name)
		require.Equal(t, int64(1), env.CompanyID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestMovementChangedEventNames(t *testing.T) {
	b, client := newTestBroadcaster(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	cases := map[movement.Status]string{
		movement.StatusReserved: "movement.reserved",
		movement.StatusIssued:   "movement.issued",
		movement.StatusReturned: "movement.returned",
		movement.StatusUsed:     "movement.used",
	}
	for status, want := range cases {
		b.MovementChanged(ctx, movement.TransitionEvent{
			CompanyID:  1,
			JobRef:     uuid.New(),
			Status:     status,
			OccurredAt: time.Now().UTC(),
		})
		select {
		case msg := <-sub.Channel():
			var env struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
			require.Equal(t, want, env.Name)
		case <-time.After(2 * time.Second):
			t.Fatalf("no event received for %s", status)
		}
	}
}

func TestPublishUnreachableRedisDoesNotFail(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	b := NewBroadcaster(client, nil)

	// Must not panic or block; broadcast failures are swallowed.
	b.StockMoved(context.Background(), stock.MovementPostedEvent{Kind: stock.KindInput, CompanyID: 1})
}
