package slots

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mediactl:slot:"

// DefaultTTL is how long a claim survives without a refresh.
const DefaultTTL = 30 * time.Second

// releaseScript deletes the key only when it still holds the caller's owner id.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the key's TTL only when it still holds the caller's owner id.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis shares claims between processes. Each claim carries a TTL and is
// refreshed at a third of it while held, so a crashed owner loses the
// source within one TTL. A zero or negative TTL means DefaultTTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration

	// OnLost is called when a held claim disappears or is taken over.
	OnLost func(source string)

	mu    sync.Mutex
	alive map[string]*claim
}

type claim struct{ stop func() }

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl, alive: make(map[string]*claim)}
}

// DialRedis connects using a redis:// URL and checks the server answers.
func DialRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rdb, ttl), nil
}

// TTL returns the claim lifetime.
func (r *Redis) TTL() time.Duration { return r.ttl }

// Close stops every refresh and closes the underlying client. Keys are left
// to expire.
func (r *Redis) Close() error {
	r.mu.Lock()
	for source, c := range r.alive {
		c.stop()
		delete(r.alive, source)
	}
	r.mu.Unlock()
	return r.rdb.Close()
}

func (r *Redis) Claim(ctx context.Context, source, owner string) error {
	key := keyPrefix + source
	ok, err := r.rdb.SetNX(ctx, key, owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim %s: %w", source, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimed, source)
	}

	c := &claim{}
	r.mu.Lock()
	c.stop = keepAlive(r.ttl/3, func(ctx context.Context) (bool, error) {
		n, err := refreshScript.Run(ctx, r.rdb, []string{key}, owner, r.ttl.Milliseconds()).Int64()
		return n == 1, err
	}, func() {
		r.mu.Lock()
		if r.alive[source] == c {
			delete(r.alive, source)
		}
		r.mu.Unlock()
		if r.OnLost != nil {
			r.OnLost(source)
		}
	})
	if prev, ok := r.alive[source]; ok {
		prev.stop()
	}
	r.alive[source] = c
	r.mu.Unlock()
	return nil
}

func (r *Redis) Release(ctx context.Context, source, owner string) error {
	r.mu.Lock()
	if c, ok := r.alive[source]; ok {
		c.stop()
		delete(r.alive, source)
	}
	r.mu.Unlock()

	if err := releaseScript.Run(ctx, r.rdb, []string{keyPrefix + source}, owner).Err(); err != nil {
		return fmt.Errorf("release %s: %w", source, err)
	}
	return nil
}
