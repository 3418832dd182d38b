// Package store provides the durable key-value surface holding the
// agent's session token, cached user identity and transient
// connect-flow state.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// well-known keys
const (
	SessionTokenKey = "session:token"
	SessionUserKey  = "session:user"
	ReturnToKey     = "connect:return_to"
)

// ErrNotFound reports that a key has no value
var ErrNotFound = errors.New("store: key not found")

// Store is a minimal key-value surface; writes are last-writer-wins,
// which is acceptable since all writes happen on the causal chain of a
// single logical operation (login, refresh, logout, connect)
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
