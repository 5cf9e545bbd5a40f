package streamdir

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed directory.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	Key          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

const defaultRedisKey = "streamgate:streams"

// Redis stores directory entries in a single Redis hash keyed by stream id.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis constructs a Redis-backed directory and verifies connectivity with
// a single ping bounded by the dial timeout.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = defaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   2,
	})

	pingTimeout := cfg.DialTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return &Redis{client: client, key: key}, nil
}

func (r *Redis) Publish(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal directory entry: %w", err)
	}
	if err := r.client.HSet(ctx, r.key, field(entry.ID), string(payload)).Err(); err != nil {
		return fmt.Errorf("publish stream %d: %w", entry.ID, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, id uint32) error {
	if err := r.client.HDel(ctx, r.key, field(id)).Err(); err != nil {
		return fmt.Errorf("remove stream %d: %w", id, err)
	}
	return nil
}

func (r *Redis) Active(ctx context.Context) ([]Entry, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for _, raw := range values {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func field(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

var _ Directory = (*Redis)(nil)
