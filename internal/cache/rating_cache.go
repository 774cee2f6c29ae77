// Package cache はRedisを使った評価集計キャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/skillswap/internal/feedback"
	"github.com/hitoshi/skillswap/internal/model"
)

const (
	keyPrefix        = "skillswap:rating:"
	generationPrefix = "skillswap:rating-gen:"

	// DefaultTTL は集計を保持する既定の期間。
	DefaultTTL = 10 * time.Minute
	// 世代キーは読み取りから書き戻しまでの間に消えなければよい。
	generationTTL = 24 * time.Hour
)

// NewRedisClient はURLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLの解析に失敗しました: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}
	return client, nil
}

// RatingCache はユーザーごとの評価集計をRedisに保持する。
// 集計キーとは別に世代キーを持ち、Invalidateで世代を進めてから集計を破棄する。
// 書き戻しはLuaスクリプトで世代を比較してから行うため、
// 読み取り中に投稿があった集計は保存されない。
type RatingCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRatingCache はRatingCacheを生成する。ttlが0以下の場合はDefaultTTLを使う。
func NewRatingCache(client redis.Cmdable, ttl time.Duration) *RatingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RatingCache{client: client, ttl: ttl}
}

// Key はユーザーIDに対応する集計キーを返す。
func Key(userID string) string {
	return keyPrefix + userID
}

// GenerationKey はユーザーIDに対応する世代キーを返す。
func GenerationKey(userID string) string {
	return generationPrefix + userID
}

type entry struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// storeIfCurrent は世代キーが期待値のままの場合のみ集計を保存する。
// KEYS[1]=世代キー, KEYS[2]=集計キー, ARGV[1]=世代, ARGV[2]=集計JSON, ARGV[3]=TTL(ms)
var storeIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Lookup は各ユーザーの集計と現在の世代を1回のMGETで取得する。
func (c *RatingCache) Lookup(ctx context.Context, userIDs []string) (map[string]feedback.CacheEntry, error) {
	if len(userIDs) == 0 {
		return map[string]feedback.CacheEntry{}, nil
	}
	keys := make([]string, 0, 2*len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, Key(id), GenerationKey(id))
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("評価キャッシュの取得に失敗しました: %w", err)
	}
	return decodeLookup(userIDs, values)
}

// decodeLookup はMGETの結果を集計と世代の組に戻す。
// 壊れた集計は未キャッシュとして扱い、次の書き戻しで上書きする。
func decodeLookup(userIDs []string, values []any) (map[string]feedback.CacheEntry, error) {
	if len(values) != 2*len(userIDs) {
		return nil, fmt.Errorf("評価キャッシュの応答件数が不正です: %d", len(values))
	}
	out := make(map[string]feedback.CacheEntry, len(userIDs))
	for i, id := range userIDs {
		var e feedback.CacheEntry

		if raw, ok := values[2*i+1].(string); ok {
			gen, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("評価キャッシュの世代が不正です: %w", err)
			}
			e.Generation = gen
		}

		if raw, ok := values[2*i].(string); ok {
			var stored entry
			if err := json.Unmarshal([]byte(raw), &stored); err == nil {
				e.Summary = model.RatingSummary{Count: stored.Count, Mean: stored.Mean}
				e.Hit = true
			}
		}
		out[id] = e
	}
	return out, nil
}

// Store は世代がgenerationのままであれば集計をTTL付きで保存し、保存したかを返す。
func (c *RatingCache) Store(ctx context.Context, userID string, generation int64, summary model.RatingSummary) (bool, error) {
	raw, err := json.Marshal(entry{Count: summary.Count, Mean: summary.Mean})
	if err != nil {
		return false, err
	}
	stored, err := storeIfCurrent.Run(ctx, c.client,
		[]string{GenerationKey(userID), Key(userID)},
		generation, string(raw), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("評価キャッシュの保存に失敗しました: %w", err)
	}
	return stored == 1, nil
}

// Invalidate は世代を進めてから集計を破棄する。
// 世代キーには集計より十分長い有効期限を付け、評価のあったユーザー分だけ残る。
func (c *RatingCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey(userID))
		pipe.Expire(ctx, GenerationKey(userID), generationTTL)
		pipe.Del(ctx, Key(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("評価キャッシュの破棄に失敗しました: %w", err)
	}
	return nil
}
