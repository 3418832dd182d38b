package store

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Config represents a configuration for the redis connection
type Config struct {
	Addr      string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix,omitempty"`
}

// Redis is a Store backed by a redis server
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis opens a connection to the redis server and pings it
func NewRedis(ctx context.Context, config Config) (*Redis, error) {
	addrType := "tcp"
	if strings.HasPrefix(config.Addr, "/") { // for unix sockets
		addrType = "unix"
	}

	rdb := redis.NewClient(&redis.Options{
		Network:  addrType,
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "store: failed to connect to redis")
	}
	return &Redis{rdb: rdb, prefix: config.KeyPrefix}, nil
}

// Client exposes the underlying redis client for collaborators that
// need more than the KV surface (rate limiting)
func (s *Redis) Client() *redis.Client {
	return s.rdb
}

// Close closes the connection to the redis server
func (s *Redis) Close() error {
	return s.rdb.Close()
}

func (s *Redis) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get gets the value of the given key
func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return value, err
}

// Set sets the given key to the given value, with no expiry
func (s *Redis) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

// Delete deletes the given key; deleting an absent key is not an error
func (s *Redis) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
