package core

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordHasher performs one-way salted hashing and constant-time
// verification. The encoded form carries the salt and work factor, so
// verification needs no side state. Implementations never surface the
// plaintext or the raw digest.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// BcryptHasher hashes with bcrypt at a configurable cost, capping concurrent
// operations with a weighted semaphore so a burst of signups cannot starve
// the rest of the process. The calling request suspends until a slot frees;
// a caller that cancels while queued gets its context error back.
type BcryptHasher struct {
	cost  int
	slots *semaphore.Weighted
}

// NewBcryptHasher builds a hasher with the given cost and worker bound.
// Out-of-range values fall back to bcrypt.DefaultCost / a single slot.
func NewBcryptHasher(cost, workers int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if workers < 1 {
		workers = 1
	}
	return &BcryptHasher{cost: cost, slots: semaphore.NewWeighted(int64(workers))}
}

func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches the encoded hash. Comparison is
// constant time (bcrypt recomputes and compares the full digest). Errors are
// only returned for infrastructure problems, never for a plain mismatch.
func (h *BcryptHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	switch err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)); err {
	case nil:
		return true, nil
	case bcrypt.ErrMismatchedHashAndPassword:
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}
