package projection

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"OptionStats/internal/store"
)

// LeaderboardCache maintains Redis sorted sets mirroring the daily and
// weekly competition rows, so rank queries never touch Postgres. Scores
// are float64 approximations of the exact on-chain amounts; the exact
// values stay in the aggregates table.
type LeaderboardCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewLeaderboardCache(rdb *goredis.Client, prefix string) *LeaderboardCache {
	return &LeaderboardCache{
		rdb:    rdb,
		prefix: prefix,
		ttl:    35 * 24 * time.Hour,
	}
}

// ConnectRedis opens and pings a Redis client.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Apply mirrors one competition row into its volume and pnl sorted sets.
func (lc *LeaderboardCache) Apply(ctx context.Context, entity store.Entity) error {
	switch row := entity.(type) {
	case *store.Leaderboard:
		return lc.score(ctx, "lb", row.TimeID, row.User, row.Volume, row.NetPnL)
	case *store.WeeklyLeaderboard:
		return lc.score(ctx, "wlb", row.TimeID, row.User, row.Volume, row.NetPnL)
	}
	return nil
}

func (lc *LeaderboardCache) score(ctx context.Context, scope, timeID, user string, volume, netPnL *big.Int) error {
	volumeKey := lc.key(scope, "volume", timeID)
	pnlKey := lc.key(scope, "pnl", timeID)

	pipe := lc.rdb.Pipeline()
	pipe.ZAdd(ctx, volumeKey, goredis.Z{Score: scoreOf(volume), Member: user})
	pipe.ZAdd(ctx, pnlKey, goredis.Z{Score: scoreOf(netPnL), Member: user})
	pipe.Expire(ctx, volumeKey, lc.ttl)
	pipe.Expire(ctx, pnlKey, lc.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SetWatermark records the last applied engine sequence.
func (lc *LeaderboardCache) SetWatermark(ctx context.Context, sequence int64) error {
	return lc.rdb.Set(ctx, lc.prefix+":lb:seq", sequence, 0).Err()
}

// TopByVolume returns the top n users of a daily bucket by volume.
func (lc *LeaderboardCache) TopByVolume(ctx context.Context, timeID string, n int64) ([]goredis.Z, error) {
	return lc.rdb.ZRevRangeWithScores(ctx, lc.key("lb", "volume", timeID), 0, n-1).Result()
}

// TopByNetPnL returns the top n users of a daily bucket by net profit.
func (lc *LeaderboardCache) TopByNetPnL(ctx context.Context, timeID string, n int64) ([]goredis.Z, error) {
	return lc.rdb.ZRevRangeWithScores(ctx, lc.key("lb", "pnl", timeID), 0, n-1).Result()
}

// Rebuild repopulates the cache from the aggregates table. Used after
// the projection channel dropped outputs or Redis was flushed.
func (lc *LeaderboardCache) Rebuild(ctx context.Context, db *sql.DB) (int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT kind, payload FROM optx.aggregates
		WHERE kind IN ($1, $2)
	`, store.KindLeaderboard, store.KindWeeklyLeaderboard)
	if err != nil {
		return 0, fmt.Errorf("query leaderboard rows: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return count, err
		}

		entity, err := store.Decode(kind, payload)
		if err != nil {
			return count, err
		}
		if err := lc.Apply(ctx, entity); err != nil {
			return count, err
		}
		count++
	}

	return count, rows.Err()
}

func (lc *LeaderboardCache) key(scope, metric, timeID string) string {
	return lc.prefix + ":" + scope + ":" + metric + ":" + timeID
}

// scoreOf converts an exact amount to a sortable float64 score.
func scoreOf(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
