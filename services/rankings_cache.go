// services/rankings_cache.go
package services

import (
	"context"
	"fmt"
	"time"

	"community-engagement-system/models"

	"github.com/redis/go-redis/v9"
)

const rankingsCacheTTL = 10 * time.Minute

// RankingsCache mirrors season leaderboards into a redis sorted set so the
// chat-platform handlers can serve "top N" reads without re-summing the
// ledger. Purely a cache: the ledger stays the source of truth.
type RankingsCache struct {
	client *redis.Client
}

func NewRankingsCache(addr, password string, db int) *RankingsCache {
	return &RankingsCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func rankingsKey(seasonID string) string {
	return fmt.Sprintf("season:%s:rankings", seasonID)
}

// Update replaces the cached leaderboard for a season.
func (c *RankingsCache) Update(ctx context.Context, seasonID string, entries []models.RankingEntry) error {
	key := rankingsKey(seasonID)

	members := make([]redis.Z, 0, len(entries))
	for _, entry := range entries {
		members = append(members, redis.Z{
			Score:  float64(entry.SeasonXP),
			Member: entry.UserID,
		})
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		pipe.ZAdd(ctx, key, members...)
	}
	pipe.Expire(ctx, key, rankingsCacheTTL)
	// Cache failures are transient by construction: the ledger remains the
	// source of truth and the next refresh repopulates the key.
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: updating rankings cache: %w", models.ErrTransientStore, err)
	}
	return nil
}

// TopN reads the cached leaderboard, highest score first. A miss returns an
// empty slice so the caller falls back to the ledger.
func (c *RankingsCache) TopN(ctx context.Context, seasonID string, n int) ([]models.RankingEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, rankingsKey(seasonID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: reading rankings cache: %w", models.ErrTransientStore, err)
	}

	entries := make([]models.RankingEntry, 0, len(results))
	for i, z := range results {
		userID, _ := z.Member.(string)
		entries = append(entries, models.RankingEntry{
			Rank:     i + 1,
			UserID:   userID,
			SeasonXP: int64(z.Score),
		})
	}
	return entries, nil
}

// Close releases the redis connection.
func (c *RankingsCache) Close() error {
	return c.client.Close()
}
