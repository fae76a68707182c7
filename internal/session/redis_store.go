package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"trustline-client-go/internal/constants"
	"trustline-client-go/internal/events"
)

// Fixed key suffixes for the persisted credential fields.
const (
	redisKeyAccess  = "access_token"
	redisKeyRefresh = "refresh_token"
	redisKeyExpiry  = "expires_at"
)

// RedisStore persists the credential set as three scalar keys under a
// prefix. Like the other backends it degrades: an unreachable server yields
// an empty set on reads and swallowed, logged writes.
type RedisStore struct {
	client *redis.Client
	prefix string
	bus    events.Publisher
	now    func() time.Time
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to redis and returns a store. bus may be nil.
func NewRedisStore(cfg RedisStoreConfig, bus events.Publisher) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, prefix: cfg.Prefix, bus: bus, now: time.Now}
}

// WithNowFunc overrides the clock used to compute expiry instants (testing).
func (s *RedisStore) WithNowFunc(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Close releases the underlying redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(suffix string) string { return s.prefix + suffix }

func (s *RedisStore) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), constants.StoreOpTimeout)
}

func (s *RedisStore) Get() TokenSet {
	ctx, cancel := s.opCtx()
	defer cancel()

	vals, err := s.client.MGet(ctx, s.key(redisKeyAccess), s.key(redisKeyRefresh), s.key(redisKeyExpiry)).Result()
	if err != nil {
		log.WithError(err).Debug("redis token read failed, treating session as empty")
		return TokenSet{}
	}

	var tokens TokenSet
	if v, ok := vals[0].(string); ok {
		tokens.AccessToken = v
	}
	if v, ok := vals[1].(string); ok {
		tokens.RefreshToken = v
	}
	if v, ok := vals[2].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			tokens.ExpiresAt = ts
		}
	}
	return tokens
}

func (s *RedisStore) SetAccess(token string, expiresIn time.Duration) {
	ctx, cancel := s.opCtx()
	defer cancel()

	expiry := s.now().Add(expiresIn).Format(time.RFC3339Nano)
	// Access token and expiry are written in one round trip so readers never
	// observe one without the other.
	err := s.client.MSet(ctx,
		s.key(redisKeyAccess), token,
		s.key(redisKeyExpiry), expiry,
	).Err()
	if err != nil {
		log.WithError(err).Warn("redis token write failed")
		return
	}
	publishChanged(s.bus)
}

func (s *RedisStore) SetRefresh(token string) {
	if token == "" {
		return
	}
	ctx, cancel := s.opCtx()
	defer cancel()

	if err := s.client.Set(ctx, s.key(redisKeyRefresh), token, 0).Err(); err != nil {
		log.WithError(err).Warn("redis refresh token write failed")
	}
}

func (s *RedisStore) Clear() {
	wasEmpty := s.Get().Empty()

	ctx, cancel := s.opCtx()
	defer cancel()

	err := s.client.Del(ctx, s.key(redisKeyAccess), s.key(redisKeyRefresh), s.key(redisKeyExpiry)).Err()
	if err != nil {
		log.WithError(err).Warn("redis token delete failed")
	}
	if !wasEmpty {
		publishChanged(s.bus)
	}
}
