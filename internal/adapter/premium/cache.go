// Package premium is a read-through Redis cache in front of the premium list
// table. Premium lookups run on every check and fee quote, while the list
// itself changes rarely.
package premium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/juniorpayne/registry-core/internal/domain"
)

const defaultTTL = 15 * time.Minute

// negative cache marker so absent labels do not hammer the table.
const notPremium = "-"

type source interface {
	GetPremium(ctx context.Context, tld, label, currency string) (*domain.PremiumEntry, error)
}

// Cache resolves premium entries through Redis. A nil Redis client degrades to
// direct table reads.
type Cache struct {
	rdb    *redis.Client
	source source
	ttl    time.Duration
	log    *slog.Logger
}

func NewCache(rdb *redis.Client, src source, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{rdb: rdb, source: src, ttl: ttl, log: log}
}

type entryJSON struct {
	CreatePrice decimal.Decimal `json:"create_price"`
	RenewPrice  decimal.Decimal `json:"renew_price"`
}

func cacheKey(tld, label string) string {
	return "premium:" + tld + ":" + label
}

// GetPremium returns the premium entry for a label, nil when not premium.
// Cache failures fall back to the table; they are logged, never surfaced.
func (c *Cache) GetPremium(ctx context.Context, tld, label, currency string) (*domain.PremiumEntry, error) {
	if c.rdb == nil {
		return c.source.GetPremium(ctx, tld, label, currency)
	}

	key := cacheKey(tld, label)
	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == notPremium {
			return nil, nil
		}
		var e entryJSON
		if err := json.Unmarshal([]byte(raw), &e); err == nil {
			return &domain.PremiumEntry{
				TLD:         tld,
				Label:       label,
				CreatePrice: domain.Money{Amount: e.CreatePrice, Currency: currency},
				RenewPrice:  domain.Money{Amount: e.RenewPrice, Currency: currency},
			}, nil
		}
		// corrupt entry: fall through to the table and rewrite
	case !errors.Is(err, redis.Nil):
		c.log.Warn("premium cache read failed", "key", key, "error", err)
	}

	entry, err := c.source.GetPremium(ctx, tld, label, currency)
	if err != nil {
		return nil, fmt.Errorf("premium lookup %s.%s: %w", label, tld, err)
	}

	c.store(ctx, key, entry)
	return entry, nil
}

func (c *Cache) store(ctx context.Context, key string, entry *domain.PremiumEntry) {
	var payload string
	if entry == nil {
		payload = notPremium
	} else {
		raw, err := json.Marshal(entryJSON{
			CreatePrice: entry.CreatePrice.Amount,
			RenewPrice:  entry.RenewPrice.Amount,
		})
		if err != nil {
			return
		}
		payload = string(raw)
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("premium cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops a label's cached entry after a premium list change.
func (c *Cache) Invalidate(ctx context.Context, tld, label string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(tld, label)).Err(); err != nil {
		c.log.Warn("premium cache invalidate failed", "tld", tld, "label", label, "error", err)
	}
}
