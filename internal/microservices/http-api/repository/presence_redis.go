package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "presence:online"

// PresenceRedisRepo mirrors presence transitions into Redis so that other
// processes can read who is online and when a user was last seen.
type PresenceRedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceRedisRepo connects to redisURL and verifies the connection.
func NewPresenceRedisRepo(redisURL, password string, ttl time.Duration) (*PresenceRedisRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPresenceRedisRepoWithClient(rdb, ttl), nil
}

func NewPresenceRedisRepoWithClient(client *redis.Client, ttl time.Duration) *PresenceRedisRepo {
	return &PresenceRedisRepo{client: client, ttl: ttl}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:user:%s", userID)
}

func (r *PresenceRedisRepo) MarkOnline(ctx context.Context, userID string) error {
	if r == nil || r.client == nil {
		// No-op when Redis is not configured
		return nil
	}
	return r.write(ctx, userID, "online")
}

func (r *PresenceRedisRepo) MarkOffline(ctx context.Context, userID string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.write(ctx, userID, "offline")
}

func (r *PresenceRedisRepo) write(ctx context.Context, userID, status string) error {
	key := presenceKey(userID)
	fields := map[string]any{
		"status":    status,
		"last_seen": time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, r.ttl)
		if status == "online" {
			pipe.SAdd(ctx, onlineUsersKey, userID)
		} else {
			pipe.SRem(ctx, onlineUsersKey, userID)
		}
		return nil
	})
	return err
}

// LastSeen returns the time of the user's latest presence transition.
func (r *PresenceRedisRepo) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	if r == nil || r.client == nil {
		return time.Time{}, false, nil
	}
	value, err := r.client.HGet(ctx, presenceKey(userID), "last_seen").Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid last_seen for %s: %w", userID, err)
	}
	return ts, true, nil
}

// OnlineUsers lists the users any process currently reports as online.
func (r *PresenceRedisRepo) OnlineUsers(ctx context.Context) ([]string, error) {
	if r == nil || r.client == nil {
		return []string{}, nil
	}
	return r.client.SMembers(ctx, onlineUsersKey).Result()
}

func (r *PresenceRedisRepo) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
