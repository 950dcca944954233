package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// memUserRepo is an in-memory UserRepository enforcing the same uniqueness
// guarantee the database constraint provides.
type memUserRepo struct {
	mu    sync.Mutex
	seq   int64
	users map[string]*UserRecord
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*UserRecord{}}
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id int64) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memUserRepo) Create(_ context.Context, username, passwordHash string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		return nil, ErrDuplicateUsername
	}
	r.seq++
	u := &UserRecord{ID: r.seq, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	r.users[username] = u
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) HasAny(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users) > 0, nil
}

func (r *memUserRepo) remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, username)
}

func newTestAuthenticator(repo UserRepository) *Authenticator {
	hasher := NewBcryptHasher(bcrypt.MinCost, 4)
	tokens := NewTokenService([]byte("test-secret"), time.Hour)
	return NewAuthenticator(repo, hasher, tokens, nil)
}

func TestSignupThenLoginThenBearer(t *testing.T) {
	repo := newMemUserRepo()
	auth := newTestAuthenticator(repo)
	ctx := context.Background()

	out := auth.Dispatch(ctx, StrategySignup, Credentials{
		Username:             "bob1",
		Password:             "Str0ng!Pass",
		PasswordConfirmation: "Str0ng!Pass",
	})
	if out.Fault != nil || !out.Success {
		t.Fatalf("signup failed: %+v", out)
	}
	if out.Claim.Username != "bob1" || out.Claim.ID == 0 {
		t.Fatalf("unexpected signup claim: %+v", out.Claim)
	}

	stored, err := repo.FindByUsername(ctx, "bob1")
	if err != nil {
		t.Fatalf("stored user missing: %v", err)
	}
	if stored.PasswordHash == "Str0ng!Pass" {
		t.Fatal("plaintext password was persisted")
	}

	login := auth.Dispatch(ctx, StrategyLogin, Credentials{Username: "bob1", Password: "Str0ng!Pass"})
	if login.Fault != nil || !login.Success {
		t.Fatalf("login failed: %+v", login)
	}
	if login.Token == "" {
		t.Fatal("login did not issue a token")
	}
	if login.Claim != out.Claim {
		t.Fatalf("login claim %+v != signup claim %+v", login.Claim, out.Claim)
	}

	bearer := auth.Dispatch(ctx, StrategyBearer, Credentials{Token: login.Token})
	if bearer.Fault != nil || !bearer.Success {
		t.Fatalf("bearer verify failed: %+v", bearer)
	}
	if bearer.Claim != login.Claim {
		t.Fatalf("bearer claim %+v != login claim %+v", bearer.Claim, login.Claim)
	}
}

func TestSignupRejectsWeakInput(t *testing.T) {
	auth := newTestAuthenticator(newMemUserRepo())
	ctx := context.Background()

	cases := []struct {
		name  string
		creds Credentials
	}{
		{"short username", Credentials{Username: "ab", Password: "Str0ng!Pass", PasswordConfirmation: "Str0ng!Pass"}},
		{"symbol in username", Credentials{Username: "bob!", Password: "Str0ng!Pass", PasswordConfirmation: "Str0ng!Pass"}},
		{"short password", Credentials{Username: "bob1", Password: "S1!a", PasswordConfirmation: "S1!a"}},
		{"no uppercase", Credentials{Username: "bob1", Password: "str0ng!pass", PasswordConfirmation: "str0ng!pass"}},
		{"no symbol", Credentials{Username: "bob1", Password: "Str0ngPass", PasswordConfirmation: "Str0ngPass"}},
		{"no digit", Credentials{Username: "bob1", Password: "Strong!Pass", PasswordConfirmation: "Strong!Pass"}},
		{"confirmation mismatch", Credentials{Username: "bob1", Password: "Str0ng!Pass", PasswordConfirmation: "Str0ng!Pass2"}},
	}
	for _, tc := range cases {
		out := auth.Dispatch(ctx, StrategySignup, tc.creds)
		if out.Success || out.Fault != nil {
			t.Errorf("%s: expected refusal, got %+v", tc.name, out)
			continue
		}
		if !errors.Is(out.Failure, ErrValidation) {
			t.Errorf("%s: failure = %v, want ErrValidation", tc.name, out.Failure)
		}
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	auth := newTestAuthenticator(newMemUserRepo())
	ctx := context.Background()
	creds := Credentials{Username: "alice", Password: "Str0ng!Pass", PasswordConfirmation: "Str0ng!Pass"}

	if out := auth.Dispatch(ctx, StrategySignup, creds); !out.Success {
		t.Fatalf("first signup failed: %+v", out)
	}
	out := auth.Dispatch(ctx, StrategySignup, creds)
	if out.Success {
		t.Fatal("second signup should fail")
	}
	if !errors.Is(out.Failure, ErrDuplicateUsername) {
		t.Fatalf("failure = %v, want ErrDuplicateUsername", out.Failure)
	}
}

func TestSignupConcurrentRace(t *testing.T) {
	auth := newTestAuthenticator(newMemUserRepo())
	ctx := context.Background()

	const attempts = 8
	outcomes := make([]Outcome, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = auth.Dispatch(ctx, StrategySignup, Credentials{
				Username:             "alice",
				Password:             "Str0ng!Pass",
				PasswordConfirmation: "Str0ng!Pass",
			})
		}(i)
	}
	wg.Wait()

	var wins int
	for i, out := range outcomes {
		if out.Fault != nil {
			t.Fatalf("attempt %d faulted: %v", i, out.Fault)
		}
		if out.Success {
			wins++
		} else if !errors.Is(out.Failure, ErrDuplicateUsername) {
			t.Fatalf("attempt %d failure = %v, want ErrDuplicateUsername", i, out.Failure)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one concurrent signup should win, got %d", wins)
	}
}

func TestLoginFailures(t *testing.T) {
	repo := newMemUserRepo()
	auth := newTestAuthenticator(repo)
	ctx := context.Background()

	auth.Dispatch(ctx, StrategySignup, Credentials{Username: "bob1", Password: "Str0ng!Pass", PasswordConfirmation: "Str0ng!Pass"})

	out := auth.Dispatch(ctx, StrategyLogin, Credentials{Username: "nobody", Password: "Str0ng!Pass"})
	if out.Success || !errors.Is(out.Failure, ErrUserNotFound) {
		t.Fatalf("unknown user: %+v, want ErrUserNotFound", out)
	}

	out = auth.Dispatch(ctx, StrategyLogin, Credentials{Username: "bob1", Password: "Wr0ng!Pass"})
	if out.Success || !errors.Is(out.Failure, ErrPasswordMismatch) {
		t.Fatalf("wrong password: %+v, want ErrPasswordMismatch", out)
	}
	if out.Token != "" {
		t.Fatal("no token may be issued on a failed login")
	}
}

func TestBearerForDeletedAccount(t *testing.T) {
	repo := newMemUserRepo()
	auth := newTestAuthenticator(repo)
	ctx := context.Background()

	auth.Dispatch(ctx, StrategySignup, Credentials{Username: "bob1", Password: "Str0ng!Pass", PasswordConfirmation: "Str0ng!Pass"})
	login := auth.Dispatch(ctx, StrategyLogin, Credentials{Username: "bob1", Password: "Str0ng!Pass"})
	if !login.Success {
		t.Fatalf("login failed: %+v", login)
	}

	repo.remove("bob1")

	out := auth.Dispatch(ctx, StrategyBearer, Credentials{Token: login.Token})
	if out.Success || !errors.Is(out.Failure, ErrUserNotFound) {
		t.Fatalf("token for deleted account: %+v, want ErrUserNotFound", out)
	}
}

func TestBearerGarbageToken(t *testing.T) {
	auth := newTestAuthenticator(newMemUserRepo())
	out := auth.Dispatch(context.Background(), StrategyBearer, Credentials{Token: "garbage"})
	if out.Success || !errors.Is(out.Failure, ErrTokenInvalid) {
		t.Fatalf("garbage token: %+v, want ErrTokenInvalid", out)
	}
}
