package core

import (
	"context"
	"errors"
	"strings"
)

// Strategy selects one concrete authentication method. The set is fixed at
// compile time, so dispatch is a closed switch rather than a runtime
// registry.
type Strategy int

const (
	// StrategySignup creates an identity from username/password/confirmation.
	StrategySignup Strategy = iota
	// StrategyLogin exchanges username/password for a bearer token.
	StrategyLogin
	// StrategyBearer validates a presented bearer token.
	StrategyBearer
)

// Credentials carries the inputs for any strategy; each strategy reads only
// the fields it needs.
type Credentials struct {
	Username             string
	Password             string
	PasswordConfirmation string
	Token                string
}

// Authenticator composes the credential store, password hasher, token
// service, and optional login throttle into the three strategies. All methods
// return an Outcome and never panic or leak store faults as auth failures.
type Authenticator struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   *TokenService
	throttle *LoginThrottle // nil when throttling is disabled
}

func NewAuthenticator(users UserRepository, hasher PasswordHasher, tokens *TokenService, throttle *LoginThrottle) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, tokens: tokens, throttle: throttle}
}

// Dispatch routes credentials to the selected strategy.
func (a *Authenticator) Dispatch(ctx context.Context, strategy Strategy, creds Credentials) Outcome {
	switch strategy {
	case StrategySignup:
		return a.Signup(ctx, creds.Username, creds.Password, creds.PasswordConfirmation)
	case StrategyLogin:
		return a.Login(ctx, creds.Username, creds.Password)
	case StrategyBearer:
		return a.VerifyBearer(ctx, creds.Token)
	default:
		return fault(errors.New("unknown authentication strategy"))
	}
}

// Signup validates the input policy, hashes the password, and creates the
// identity. The upstream handler validates too; re-checking here keeps the
// policy intact for any other caller. The username uniqueness race is settled
// by the storage constraint inside Create.
func (a *Authenticator) Signup(ctx context.Context, username, password, confirmation string) Outcome {
	username = strings.TrimSpace(username)
	if err := ValidateSignup(username, password, confirmation); err != nil {
		return refuse(err)
	}

	if _, err := a.users.FindByUsername(ctx, username); err == nil {
		return refuse(ErrDuplicateUsername)
	} else if !errors.Is(err, ErrUserNotFound) {
		return fault(err)
	}

	hash, err := a.hasher.Hash(ctx, password)
	if err != nil {
		return fault(err)
	}
	user, err := a.users.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			// Lost the check-then-create race to a concurrent signup.
			return refuse(ErrDuplicateUsername)
		}
		return fault(err)
	}
	return succeed(user.Claim(), "")
}

// Login verifies the password against the stored hash and issues a bearer
// token. Failed attempts are counted per username; exceeding the window limit
// refuses before the hash is even checked.
func (a *Authenticator) Login(ctx context.Context, username, password string) Outcome {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return refuse(ErrUserNotFound)
	}

	if a.throttle != nil {
		blocked, err := a.throttle.Blocked(ctx, username)
		if err == nil && blocked {
			return refuse(ErrTooManyAttempts)
		}
		// Throttle errors fail open: redis being down must not lock logins.
	}

	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.recordFailure(ctx, username)
			return refuse(ErrUserNotFound)
		}
		return fault(err)
	}

	ok, err := a.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return fault(err)
	}
	if !ok {
		a.recordFailure(ctx, username)
		return refuse(ErrPasswordMismatch)
	}

	claim := user.Claim()
	token, err := a.tokens.Issue(claim)
	if err != nil {
		return fault(err)
	}
	if a.throttle != nil {
		_ = a.throttle.Reset(ctx, username)
	}
	return succeed(claim, token)
}

// VerifyBearer validates the token signature and expiry, then re-resolves the
// identity so a token for a deleted account is refused even though the
// signature still checks out.
func (a *Authenticator) VerifyBearer(ctx context.Context, raw string) Outcome {
	claim, err := a.tokens.Verify(raw)
	if err != nil {
		return refuse(err)
	}
	user, err := a.users.FindByID(ctx, claim.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return refuse(ErrUserNotFound)
		}
		return fault(err)
	}
	return succeed(user.Claim(), "")
}

func (a *Authenticator) recordFailure(ctx context.Context, username string) {
	if a.throttle != nil {
		_ = a.throttle.RecordFailure(ctx, username)
	}
}
