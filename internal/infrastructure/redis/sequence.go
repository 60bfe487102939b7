package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const confirmationNumberLifetime = 7 * 24 * time.Hour

// counter is an INCR+EXPIREAT sequence. The cache only holds counters; it
// never decides transaction state.
type counter struct {
	client redis.Cmdable
	prefix string
}

func (c counter) next(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, expireAt)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

// TTL reports the remaining lifetime of a counter key.
func (c counter) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	return d, nil
}

// OrderNumberGenerator mints order numbers unique per venue and order date.
type OrderNumberGenerator struct {
	counter
	loc *time.Location
}

// NewOrderNumberGenerator counts order dates in loc.
func NewOrderNumberGenerator(client redis.Cmdable, prefix string, loc *time.Location) *OrderNumberGenerator {
	return &OrderNumberGenerator{counter: counter{client: client, prefix: prefix}, loc: loc}
}

// Key returns the counter key for a venue and date.
func (g *OrderNumberGenerator) Key(venueCode string, orderDate time.Time) string {
	return fmt.Sprintf("%s:orderNumber:%s:%s", g.prefix, venueCode, orderDate.In(g.loc).Format("060102"))
}

// Publish returns the next order number, formatted {venue}-{YYMMDD}-{seq}.
// The counter lives until the end of the day after orderDate.
func (g *OrderNumberGenerator) Publish(ctx context.Context, venueCode string, orderDate time.Time) (string, error) {
	local := orderDate.In(g.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)

	seq, err := g.next(ctx, g.Key(venueCode, orderDate), dayStart.AddDate(0, 0, 2))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%06d", venueCode, local.Format("060102"), seq), nil
}

// ConfirmationNumberGenerator mints confirmation numbers unique per event.
type ConfirmationNumberGenerator struct {
	counter
}

func NewConfirmationNumberGenerator(client redis.Cmdable, prefix string) *ConfirmationNumberGenerator {
	return &ConfirmationNumberGenerator{counter: counter{client: client, prefix: prefix}}
}

// Key returns the counter key for an event.
func (g *ConfirmationNumberGenerator) Key(eventID string) string {
	return fmt.Sprintf("%s:confirmationNumber:%s", g.prefix, eventID)
}

// Publish returns the next confirmation number of the event. The counter
// lives for a week past the event end.
func (g *ConfirmationNumberGenerator) Publish(ctx context.Context, eventID string, eventEnd time.Time) (int64, error) {
	return g.next(ctx, g.Key(eventID), eventEnd.Add(confirmationNumberLifetime))
}
