package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTokenStoreCreateConflict(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	created, err := s.Create(ctx, SessionToken{UserID: "u1", AccessToken: "first"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatalf("Create() must assign a row id")
	}
	if _, err := s.Create(ctx, SessionToken{UserID: "u1", AccessToken: "second"}); !errors.Is(err, ErrTokenConflict) {
		t.Fatalf("second Create() error = %v, want ErrTokenConflict", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryTokenStoreUpdate(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	created, err := s.Create(ctx, SessionToken{UserID: "u1", AccessToken: "old", TokenType: TokenTypeBearer})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expires := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	updated, err := s.Update(ctx, created.ID, SessionToken{AccessToken: "new", TokenType: TokenTypeBearer, ExpiresAt: expires})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ID != created.ID || updated.UserID != "u1" {
		t.Fatalf("Update() changed row identity: %+v", updated)
	}
	if updated.AccessToken != "new" || !updated.ExpiresAt.Equal(expires) {
		t.Fatalf("Update() did not apply new value: %+v", updated)
	}

	if _, err := s.Update(ctx, "no-such-id", SessionToken{}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Update(unknown) error = %v, want ErrTokenNotFound", err)
	}
}

func TestMemoryTokenStoreUpsertIfValid(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	// No row yet: insert.
	if err := s.UpsertIfValid(ctx, SessionToken{UserID: "u1", AccessToken: "one"}, nil); err != nil {
		t.Fatalf("UpsertIfValid() error = %v", err)
	}
	first, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Stored row reported valid: overwrite in place.
	if err := s.UpsertIfValid(ctx, SessionToken{UserID: "u1", AccessToken: "two"}, func(string) bool { return true }); err != nil {
		t.Fatalf("UpsertIfValid() error = %v", err)
	}
	second, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("overwrite changed row id: %q -> %q", first.ID, second.ID)
	}
	if second.AccessToken != "two" {
		t.Fatalf("stored value = %q, want %q", second.AccessToken, "two")
	}

	// Stored row reported expired: leave it alone.
	if err := s.UpsertIfValid(ctx, SessionToken{UserID: "u1", AccessToken: "three"}, func(string) bool { return false }); err != nil {
		t.Fatalf("UpsertIfValid() error = %v", err)
	}
	third, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if third.AccessToken != "two" {
		t.Fatalf("expired row overwritten: %q", third.AccessToken)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryTokenStoreGetMissing(t *testing.T) {
	s := NewMemoryTokenStore()
	if _, err := s.Get(context.Background(), "nobody"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Get() error = %v, want ErrTokenNotFound", err)
	}
}

func TestMemoryTokenStoreContextCancelled(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Get(ctx, "u1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}
	if err := s.UpsertIfValid(ctx, SessionToken{UserID: "u1"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("UpsertIfValid() error = %v, want context.Canceled", err)
	}
}

func TestMemoryDirectoryInsertAndFind(t *testing.T) {
	d := NewMemoryDirectory()
	ctx := context.Background()

	user := User{Email: "alice@example.com", Name: "Alice"}
	if err := d.Insert(ctx, user); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := d.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got.ID == "" {
		t.Fatalf("Insert() must assign an id")
	}

	if err := d.Insert(ctx, User{Email: "alice@example.com"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate Insert() error = %v, want ErrAlreadyRegistered", err)
	}
	if _, err := d.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNoSuchUser) {
		t.Fatalf("FindByEmail(unknown) error = %v, want ErrNoSuchUser", err)
	}
}

func TestMemoryDirectoryMarkConfirmed(t *testing.T) {
	d := NewMemoryDirectory()
	ctx := context.Background()

	if err := d.Insert(ctx, User{Email: "alice@example.com"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user, err := d.MarkConfirmed(ctx, "alice@example.com", at)
	if err != nil {
		t.Fatalf("MarkConfirmed() error = %v", err)
	}
	if !user.Confirmed || user.ConfirmedAt == nil || !user.ConfirmedAt.Equal(at) {
		t.Fatalf("MarkConfirmed() = %+v", user)
	}

	if _, err := d.MarkConfirmed(ctx, "nobody@example.com", at); !errors.Is(err, ErrNoSuchUser) {
		t.Fatalf("MarkConfirmed(unknown) error = %v, want ErrNoSuchUser", err)
	}
}

func TestMemoryDirectoryListConfirmed(t *testing.T) {
	d := NewMemoryDirectory()
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err := d.Insert(ctx, User{Email: email}); err != nil {
			t.Fatalf("Insert(%s) error = %v", email, err)
		}
	}
	at := time.Now()
	if _, err := d.MarkConfirmed(ctx, "a@example.com", at); err != nil {
		t.Fatalf("MarkConfirmed() error = %v", err)
	}
	if _, err := d.MarkConfirmed(ctx, "c@example.com", at); err != nil {
		t.Fatalf("MarkConfirmed() error = %v", err)
	}

	confirmed, err := d.ListConfirmed(ctx)
	if err != nil {
		t.Fatalf("ListConfirmed() error = %v", err)
	}
	if len(confirmed) != 2 {
		t.Fatalf("ListConfirmed() = %d users, want 2", len(confirmed))
	}
	for _, u := range confirmed {
		if u.Email == "b@example.com" {
			t.Fatalf("unconfirmed user listed")
		}
	}
}
