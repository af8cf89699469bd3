// Package idempotency replays the stored response of a request repeated with the same Idempotency-Key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/gigconnect/internal/domain"
)

// ErrInProgress is returned while the first request with a key is still running.
var ErrInProgress = errors.Mark(errors.New("request with this idempotency key is in progress"), domain.ErrConflict)

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Response, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
	// lockTTL bounds how long a crashed request keeps its key reserved.
	lockTTL time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, lockTTL: time.Minute}
}

// Key scopes a client key to the caller and the route so keys never collide across users.
func Key(scope, method, path, clientKey string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + method + "\x00" + path + "\x00" + clientKey))
	return hex.EncodeToString(sum[:])
}

// Begin returns the stored response for key, if any. Otherwise it reserves key for the caller,
// who must then call Complete or Abort.
func (i *Idempotency) Begin(ctx context.Context, key string) (*Response, error) {
	resp, err := i.store.Get(ctx, key)
	if err != nil || resp != nil {
		return resp, err
	}
	ok, err := i.store.Reserve(ctx, key, i.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInProgress
	}
	// A request holding the key may have completed between Get and Reserve.
	resp, err = i.store.Get(ctx, key)
	if err != nil || resp != nil {
		// A lock that fails to release expires with lockTTL.
		_ = i.store.Release(ctx, key)
		return resp, err
	}
	return nil, nil
}

func (i *Idempotency) Complete(ctx context.Context, key string, resp Response) error {
	return i.store.Set(ctx, key, resp, i.ttl)
}

func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.store.Release(ctx, key)
}
