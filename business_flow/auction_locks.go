package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuctionLocker guards the closing of one auction across engine workers. The claim
// compare-and-swap already guarantees a single winner; the lock only saves wasted work.
type AuctionLocker interface {
	TryLock(ctx context.Context, bidNumber string) (release func(), err error)
}

const auctionLockKeyPrefix = "freight:auction:close:"

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisAuctionLocker implements AuctionLocker with SET NX and a TTL
type RedisAuctionLocker struct {
	rc  redis.UniversalClient
	ttl time.Duration
}

func NewRedisAuctionLocker(rc redis.UniversalClient, ttl time.Duration) AuctionLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAuctionLocker{rc: rc, ttl: ttl}
}

func auctionLockKey(bidNumber string) string {
	return auctionLockKeyPrefix + bidNumber
}

// TryLock returns ErrLockBusy when another worker holds the key
func (l *RedisAuctionLocker) TryLock(ctx context.Context, bidNumber string) (func(), error) {
	key := auctionLockKey(bidNumber)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire auction lock %s: %w", bidNumber, err)
	}
	if !ok {
		return nil, ErrLockBusy
	}

	return func() {
		// the caller's ctx may already be done when the work finished
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.rc, []string{key}, token).Err()
	}, nil
}

// LocalAuctionLocker serializes closings within one process
type LocalAuctionLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalAuctionLocker() AuctionLocker {
	return &LocalAuctionLocker{held: make(map[string]struct{})}
}

func (l *LocalAuctionLocker) TryLock(_ context.Context, bidNumber string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[bidNumber]; busy {
		return nil, ErrLockBusy
	}
	l.held[bidNumber] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, bidNumber)
			l.mu.Unlock()
		})
	}, nil
}
