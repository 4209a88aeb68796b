// Package cache keeps computed credit states in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/ledger"
	"github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect returns a client for addr after checking that the server answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// CreditStateCache implements ledger.StateCache. Redis errors are logged and
// treated as misses; the ledger then reads from the database.
type CreditStateCache struct {
	rdb redis.Cmdable
	ttl time.Duration
	log zerolog.Logger
}

func NewCreditStateCache(rdb redis.Cmdable, ttl time.Duration) *CreditStateCache {
	return &CreditStateCache{
		rdb: rdb,
		ttl: ttl,
		log: logger.WithComponent("cache"),
	}
}

func creditKey(id uint) string {
	return fmt.Sprintf("credit:%d:state", id)
}

func (c *CreditStateCache) Get(ctx context.Context, creditID uint) (*ledger.CreditState, bool) {
	raw, err := c.rdb.Get(ctx, creditKey(creditID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Uint("credit_id", creditID).Msg("redis GET failed")
		}
		return nil, false
	}
	var st ledger.CreditState
	if err := json.Unmarshal(raw, &st); err != nil {
		c.log.Warn().Err(err).Uint("credit_id", creditID).Msg("cached credit state is unreadable")
		return nil, false
	}
	return &st, true
}

func (c *CreditStateCache) Set(ctx context.Context, st *ledger.CreditState) {
	raw, err := json.Marshal(st)
	if err != nil {
		c.log.Warn().Err(err).Uint("credit_id", st.Credit.ID).Msg("credit state could not be encoded")
		return
	}
	if err := c.rdb.Set(ctx, creditKey(st.Credit.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Uint("credit_id", st.Credit.ID).Msg("redis SET failed")
	}
}

func (c *CreditStateCache) Invalidate(ctx context.Context, creditID uint) {
	if err := c.rdb.Del(ctx, creditKey(creditID)).Err(); err != nil {
		c.log.Warn().Err(err).Uint("credit_id", creditID).Msg("redis DEL failed")
	}
}
