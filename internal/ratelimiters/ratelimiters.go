// Package ratelimiters guards the agent's public endpoints against
// hammering, backed by the same redis the store runs on.
package ratelimiters

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
)

// limits
const (
	LandingRequestLimitPerSecond = 10
)

// limit key prefixes
const (
	landingRequestKeyPrefix = "r:oauth-landing"
)

var limiter *redis_rate.Limiter

// Init initializes the rate limiters over the given redis client;
// when never called, all requests are allowed (store-less runs)
func Init(rdb *redis.Client) {
	limiter = redis_rate.NewLimiter(rdb)
}

// LandingRequestAllowed checks if an incoming OAuth landing request
// from the given IP address is allowed to get processed
func LandingRequestAllowed(ctx context.Context, IP string) bool {
	if limiter == nil {
		return true
	}
	key := fmt.Sprintf("%s:%s", landingRequestKeyPrefix, IP)
	res, err := limiter.Allow(ctx, key, redis_rate.PerSecond(LandingRequestLimitPerSecond))
	if err != nil {
		return false
	}
	return res.Allowed != 0
}
