package scheduler

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lease keeps two pollers from running the same pass at once
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}

// releaseScript deletes the key only while we still own it
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLease is a SETNX lock with a TTL, owned by a per-process token
type RedisLease struct {
	client *redis.Client
	owner  string
	prefix string
	logger *zap.Logger
}

func NewRedisLease(client *redis.Client, logger *zap.Logger) *RedisLease {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLease{
		client: client,
		owner:  uuid.NewString(),
		prefix: "sa3tha:followup:lease:",
		logger: logger,
	}
}

func (l *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}

	release := func() {
		// the pass context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, l.owner).Err(); err != nil {
			// the key still expires after ttl
			l.logger.Warn("failed to release lease",
				zap.String("lease", name),
				zap.Duration("ttl", ttl),
				zap.Error(err))
		}
	}
	return release, true, nil
}

// Owner is the token written into held lease keys
func (l *RedisLease) Owner() string {
	return l.owner
}
