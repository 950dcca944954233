package core

import (
	"errors"
)

// Claim is the minimal identity projection embedded in a bearer token and
// attached to authenticated requests. It never carries the password hash.
type Claim struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Authentication failure taxonomy. Every value is a recoverable caller-side
// condition; store faults propagate as ordinary wrapped errors and must not
// be classified as any of these.
var (
	// ErrDuplicateUsername is returned when a signup races or repeats an
	// existing username. The storage uniqueness constraint is authoritative.
	ErrDuplicateUsername = errors.New("username is already in use")
	// ErrUserNotFound is returned when no identity exists for a username or
	// id, including identities deleted after a token was issued.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordMismatch is returned when the password does not verify
	// against the stored hash.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrTokenInvalid covers malformed, tampered, and wrongly signed tokens.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired is distinct from ErrTokenInvalid so clients can log in
	// again instead of treating the token as forged.
	ErrTokenExpired = errors.New("token has expired")
	// ErrMalformedHeader is returned when the Authorization header is missing
	// or does not carry the Bearer scheme.
	ErrMalformedHeader = errors.New("authorization header is missing or malformed")
	// ErrValidation marks input-policy violations (weak password, bad
	// username, confirmation mismatch). Wrap with a human message.
	ErrValidation = errors.New("validation failed")
	// ErrTooManyAttempts is returned when the login throttle window is full.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// Outcome is the uniform result of every authentication strategy. Exactly one
// of Claim/Failure is meaningful: on success Claim is set (and Token for
// login); on failure Failure carries one of the taxonomy sentinels, possibly
// wrapped. Internal faults are reported via Fault instead so callers can
// answer 500 rather than 401.
type Outcome struct {
	Success bool
	Claim   Claim
	Token   string
	Failure error
	Fault   error
}

func succeed(claim Claim, token string) Outcome {
	return Outcome{Success: true, Claim: claim, Token: token}
}

func refuse(reason error) Outcome {
	return Outcome{Failure: reason}
}

func fault(err error) Outcome {
	return Outcome{Fault: err}
}
