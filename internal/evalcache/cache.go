// Package evalcache puts a Redis cache in front of the evaluation backend.
// Evaluations of a given position or line are deterministic for the backend's
// fixed engine settings, so they are cached by content hash with a TTL.
package evalcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chessflix/internal/evalclient"
)

const defaultTTL = 24 * time.Hour

// Backend is the evaluation service contract; *evalclient.Client implements it.
type Backend interface {
	Reset(ctx context.Context) error
	EvaluatePosition(ctx context.Context, fen string) (int, error)
	EvaluateGame(ctx context.Context, startFEN string, lans []string) ([]int, error)
	Previews(ctx context.Context, fen string, count, depth int) ([]evalclient.Preview, error)
}

type Cache struct {
	rdb     *redis.Client
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
}

func New(rdb *redis.Client, backend Backend, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, backend: backend, ttl: ttl, logger: logger}
}

// NewFromURL dials redis:// or rediss:// URLs and pings once.
func NewFromURL(ctx context.Context, raw string, backend Backend, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	opts, err := parseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, backend, ttl, logger), nil
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Cache) keyPosition(fen string) string { return "eval:pos:" + digest(fen) }
func (c *Cache) keyGame(fen string, lans []string) string {
	return "eval:game:" + digest(fen+"|"+strings.Join(lans, " "))
}
func (c *Cache) keyPreviews(fen string, count, depth int) string {
	return "eval:prev:" + digest(fmt.Sprintf("%s|%d|%d", fen, count, depth))
}

// Reset is forwarded untouched; cached evaluations stay valid across games.
func (c *Cache) Reset(ctx context.Context) error { return c.backend.Reset(ctx) }

func (c *Cache) EvaluatePosition(ctx context.Context, fen string) (int, error) {
	key := c.keyPosition(fen)
	var cp int
	if c.load(ctx, key, &cp) {
		return cp, nil
	}
	cp, err := c.backend.EvaluatePosition(ctx, fen)
	if err != nil {
		return 0, err
	}
	c.save(ctx, key, cp)
	return cp, nil
}

func (c *Cache) EvaluateGame(ctx context.Context, startFEN string, lans []string) ([]int, error) {
	key := c.keyGame(startFEN, lans)
	var scores []int
	if c.load(ctx, key, &scores) && len(scores) == len(lans) {
		return scores, nil
	}
	scores, err := c.backend.EvaluateGame(ctx, startFEN, lans)
	if err != nil {
		return nil, err
	}
	if len(scores) == len(lans) {
		c.save(ctx, key, scores)
	}
	return scores, nil
}

func (c *Cache) Previews(ctx context.Context, fen string, count, depth int) ([]evalclient.Preview, error) {
	key := c.keyPreviews(fen, count, depth)
	var previews []evalclient.Preview
	if c.load(ctx, key, &previews) {
		return previews, nil
	}
	previews, err := c.backend.Previews(ctx, fen, count, depth)
	if err != nil {
		return nil, err
	}
	if len(previews) > 0 {
		c.save(ctx, key, previews)
	}
	return previews, nil
}

// load reports a hit; redis failures count as misses.
func (c *Cache) load(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("eval_cache_get_failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("eval_cache_corrupt", zap.String("key", key), zap.Error(err))
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("eval_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
