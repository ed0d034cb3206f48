// Package storage is the persistent key/value surface a session lives on.
// Several Store instances may share one backing medium; each sees the
// others' writes through Watch.
package storage

import (
	"context"

	"github.com/google/uuid"
)

// Persisted keys.
const (
	KeyToken    = "token"    // JSON token.Token
	KeyUsername = "username" // plain string
	// KeyRefreshToken is a legacy key only ever deleted.
	KeyRefreshToken = "refreshToken"
)

// Change describes a write made through some Store. Version increases with
// every write to the shared medium within one Generation; a backend whose
// counter can restart reports a new Generation when it does. Key is empty
// when the backend cannot tell which key changed.
type Change struct {
	Key        string `json:"key"`
	Version    uint64 `json:"version"`
	Generation string `json:"generation,omitempty"`
	Origin     string `json:"origin"`
}

type Store interface {
	// Get returns ok=false for a missing key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes keys as one write. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Watch calls fn for writes made by other Stores on the same medium.
	// fn runs on a backend goroutine. The returned func stops delivery.
	Watch(fn func(Change)) (cancel func(), err error)
	// Origin identifies this Store in the Changes it produces.
	Origin() string
	Close() error
}

// NewOrigin returns a fresh Store identity.
func NewOrigin() string {
	return uuid.New().String()
}
