package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type capturingNotifier struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{done: make(chan struct{}, 16)}
}

func (n *capturingNotifier) Notify(_ context.Context, recipient, _, body string) error {
	n.mu.Lock()
	n.sent = append(n.sent, recipient+"|"+body)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *capturingNotifier) wait(t *testing.T) string {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("notification never delivered")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type serviceFixture struct {
	svc      *Service
	dir      *MemoryDirectory
	store    *MemoryTokenStore
	codec    *TokenCodec
	notifier *capturingNotifier
	now      *time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec(codecSecret, "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	codec.SetNowFunc(func() time.Time { return now })

	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}

	f := &serviceFixture{
		dir:      NewMemoryDirectory(),
		store:    NewMemoryTokenStore(),
		codec:    codec,
		notifier: newCapturingNotifier(),
		now:      &now,
	}
	svc, err := NewService(ServiceConfig{
		Directory:   f.dir,
		Tokens:      f.store,
		Codec:       codec,
		Obfuscator:  NewLinkObfuscator(key),
		Hasher:      NewBcryptHasher(WithBcryptCost(bcrypt.MinCost)),
		Notifier:    f.notifier,
		LinkBaseURL: "http://localhost:8000",
		Now:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

func (f *serviceFixture) advance(d time.Duration) { *f.now = f.now.Add(d) }

func confirmationBlob(t *testing.T, link string) string {
	t.Helper()
	i := strings.LastIndex(link, "/confirmation/")
	if i < 0 {
		t.Fatalf("link %q has no confirmation segment", link)
	}
	return link[i+len("/confirmation/"):]
}

func TestRegisterIssuesConfirmationLink(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user, link, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Confirmed {
		t.Fatalf("new user must start unconfirmed")
	}
	if !strings.HasPrefix(link, "http://localhost:8000/confirmation/") {
		t.Fatalf("link = %q", link)
	}

	// Dual delivery: the caller got the link, and the mail channel got it too.
	if sent := f.notifier.wait(t); !strings.Contains(sent, link) {
		t.Fatalf("email %q does not carry link %q", sent, link)
	}

	stored, err := f.store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("stored token missing: %v", err)
	}
	claims, err := f.codec.Decode(stored.AccessToken)
	if err != nil {
		t.Fatalf("stored token does not decode: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("claims email = %q", claims.Email)
	}
	if want := f.now.Add(30 * time.Minute); !claims.ExpiresAt.Time.Equal(want) {
		t.Fatalf("claims expiry = %v, want %v", claims.ExpiresAt.Time, want)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, _, err := f.svc.Register(ctx, "alice@example.com", "Other", "password2"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register() error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestConfirmRegistrationLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, link, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	blob := confirmationBlob(t, link)

	user, err := f.svc.ConfirmRegistration(ctx, blob)
	if err != nil {
		t.Fatalf("ConfirmRegistration() error = %v", err)
	}
	if !user.Confirmed || user.ConfirmedAt == nil {
		t.Fatalf("user not marked confirmed: %+v", user)
	}
	if !user.ConfirmedAt.Equal(*f.now) {
		t.Fatalf("confirmedAt = %v, want %v", user.ConfirmedAt, *f.now)
	}

	if _, err := f.svc.ConfirmRegistration(ctx, blob); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("second ConfirmRegistration() error = %v, want ErrAlreadyConfirmed", err)
	}
}

func TestConfirmRegistrationExpiredLink(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, link, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	f.advance(31 * time.Minute)
	if _, err := f.svc.ConfirmRegistration(ctx, confirmationBlob(t, link)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("ConfirmRegistration() error = %v, want ErrTokenExpired", err)
	}
}

func TestConfirmRegistrationBadPayloads(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ConfirmRegistration(ctx, "not-a-valid-blob"); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("garbage blob error = %v, want ErrLinkInvalid", err)
	}

	// Valid encryption wrapping a token for an unknown user.
	token, err := f.codec.Issue("ghost@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	blob, err := f.svc.links.Obfuscate(token.AccessToken)
	if err != nil {
		t.Fatalf("Obfuscate() error = %v", err)
	}
	if _, err := f.svc.ConfirmRegistration(ctx, blob); !errors.Is(err, ErrNoSuchUser) {
		t.Fatalf("unknown user error = %v, want ErrNoSuchUser", err)
	}
}

func TestLoginUnconfirmedReturnsLink(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res, err := f.svc.Login(ctx, "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token != nil {
		t.Fatalf("unconfirmed login must not yield a session token")
	}
	if !strings.Contains(res.ConfirmationLink, "/confirmation/") {
		t.Fatalf("confirmation link = %q", res.ConfirmationLink)
	}
}

func TestLoginConfirmedReturnsToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, link, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := f.svc.ConfirmRegistration(ctx, confirmationBlob(t, link)); err != nil {
		t.Fatalf("ConfirmRegistration() error = %v", err)
	}

	res, err := f.svc.Login(ctx, "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == nil {
		t.Fatalf("confirmed login must yield a session token")
	}
	if res.Token.TokenType != TokenTypeBearer {
		t.Fatalf("token type = %q", res.Token.TokenType)
	}

	// The returned bearer credential resolves back to the user.
	user, err := f.svc.ResolveCurrentUser(ctx, "Bearer "+res.Token.AccessToken)
	if err != nil {
		t.Fatalf("ResolveCurrentUser() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("resolved email = %q", user.Email)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrNoSuchUser) {
		t.Fatalf("unknown email error = %v, want ErrNoSuchUser", err)
	}

	_, link, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Wrong password fails the same way before and after confirmation.
	if _, err := f.svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password error = %v, want ErrBadCredentials", err)
	}
	if _, err := f.svc.ConfirmRegistration(ctx, confirmationBlob(t, link)); err != nil {
		t.Fatalf("ConfirmRegistration() error = %v", err)
	}
	if _, err := f.svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password error = %v, want ErrBadCredentials", err)
	}
}

func TestResolveCurrentUserFailsClosed(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, link, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := f.svc.ConfirmRegistration(ctx, confirmationBlob(t, link)); err != nil {
		t.Fatalf("ConfirmRegistration() error = %v", err)
	}
	res, err := f.svc.Login(ctx, "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	for name, header := range map[string]string{
		"empty":        "",
		"scheme only":  "Bearer ",
		"wrong scheme": "Basic " + res.Token.AccessToken,
		"no scheme":    res.Token.AccessToken,
		"garbage":      "Bearer not.a.token",
	} {
		if _, err := f.svc.ResolveCurrentUser(ctx, header); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: error = %v, want ErrUnauthorized", name, err)
		}
	}

	f.advance(31 * time.Minute)
	if _, err := f.svc.ResolveCurrentUser(ctx, "Bearer "+res.Token.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired bearer error = %v, want ErrUnauthorized", err)
	}
}

func TestGetOrRefreshTokenSingleRow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	first, err := f.store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Second issuance while the stored token is still valid overwrites
	// the value in place: same row, same id, new value.
	f.advance(time.Minute)
	if _, err := f.svc.IssueConfirmationLink(ctx, user); err != nil {
		t.Fatalf("IssueConfirmationLink() error = %v", err)
	}
	if f.store.Len() != 1 {
		t.Fatalf("stored rows = %d, want 1", f.store.Len())
	}
	second, err := f.store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("row id changed on refresh: %q -> %q", first.ID, second.ID)
	}
	if second.AccessToken == first.AccessToken {
		t.Fatalf("stored value was not refreshed")
	}
}

// Refreshing over an already-expired stored row leaves the row
// unchanged while the caller still receives a fresh token.
func TestGetOrRefreshTokenExpiredRowUntouched(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Register(ctx, "alice@example.com", "Alice", "password1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	stale, err := f.store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	f.advance(31 * time.Minute)
	fresh, err := f.svc.GetOrRefreshToken(ctx, user)
	if err != nil {
		t.Fatalf("GetOrRefreshToken() error = %v", err)
	}
	if !f.codec.StillValid(fresh.AccessToken) {
		t.Fatalf("caller-visible token must be fresh")
	}

	stored, err := f.store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.AccessToken != stale.AccessToken {
		t.Fatalf("expired stored row was refreshed")
	}
	if f.store.Len() != 1 {
		t.Fatalf("stored rows = %d, want 1", f.store.Len())
	}
}

func TestGetOrRefreshTokenConcurrent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user := User{ID: "user-1", Email: "alice@example.com", Confirmed: true}
	if err := f.dir.Insert(ctx, user); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.GetOrRefreshToken(ctx, user); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetOrRefreshToken() error = %v", err)
	}
	if f.store.Len() != 1 {
		t.Fatalf("stored rows = %d, want 1", f.store.Len())
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewService() error = %v, want ErrInvalidConfig", err)
	}
}
