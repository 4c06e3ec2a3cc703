package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-auth/internal/model"
)

func TestTokenRepo_StoreAndFind(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "tok", model.RoleCustomer)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.StoreRefresh(ctx, u.ID, "hash-a", now.Add(time.Hour), now); err != nil {
		t.Fatalf("StoreRefresh() error = %v", err)
	}

	got, err := repo.FindByHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if got.UserID != u.ID || got.Revoked {
		t.Errorf("FindByHash() = %+v", got)
	}
	if !got.Live(now) {
		t.Error("freshly stored token should be live")
	}

	if _, err := repo.FindByHash(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByHash(nope) error = %v, want ErrNotFound", err)
	}
}

func TestTokenRepo_RevokeLiveOnlyOnce(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "once", model.RoleCustomer)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	repo.StoreRefresh(ctx, u.ID, "hash-once", now.Add(time.Hour), now) //nolint:errcheck // test setup

	first, err := repo.RevokeLive(ctx, "hash-once", model.RevokeRotated)
	if err != nil || !first {
		t.Fatalf("first RevokeLive() = %v, %v; want true, nil", first, err)
	}
	second, err := repo.RevokeLive(ctx, "hash-once", model.RevokeExpired)
	if err != nil || second {
		t.Fatalf("second RevokeLive() = %v, %v; want false, nil", second, err)
	}
	got, _ := repo.FindByHash(ctx, "hash-once")
	if got.RevokeReason != model.RevokeRotated {
		t.Errorf("RevokeReason = %q, the losing call must not overwrite it", got.RevokeReason)
	}
}

func TestTokenRepo_RevokeLiveConcurrent(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "race", model.RoleCustomer)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	repo.StoreRefresh(ctx, u.ID, "hash-race", now.Add(time.Hour), now) //nolint:errcheck // test setup

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.RevokeLive(ctx, "hash-race", model.RevokeRotated)
			if err != nil {
				t.Errorf("RevokeLive() error = %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins.Load())
	}
}

func TestTokenRepo_RevokeAllForUserIsScoped(t *testing.T) {
	db := testDB(t)
	alice := seedUser(t, db, "alice", model.RoleWaiter)
	bob := seedUser(t, db, "bob", model.RoleWaiter)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, h := range []string{"a1", "a2"} {
		repo.StoreRefresh(ctx, alice.ID, h, now.Add(time.Hour), now) //nolint:errcheck // test setup
	}
	repo.StoreRefresh(ctx, bob.ID, "b1", now.Add(time.Hour), now) //nolint:errcheck // test setup

	n, err := repo.RevokeAllForUser(ctx, alice.ID, model.RevokeLogout)
	if err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}
	if n != 2 {
		t.Errorf("revoked %d rows, want 2", n)
	}

	a1, _ := repo.FindByHash(ctx, "a1")
	if !a1.Revoked || a1.RevokeReason != model.RevokeLogout {
		t.Errorf("a1 = %+v, want revoked for logout", a1)
	}
	b1, _ := repo.FindByHash(ctx, "b1")
	if b1.Revoked || b1.RevokeReason != "" {
		t.Error("other user's token must stay live")
	}
}

func TestTokenRepo_DeleteDead(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "sweep", model.RoleOwner)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	repo.StoreRefresh(ctx, u.ID, "live", now.Add(time.Hour), now)                       //nolint:errcheck // test setup
	repo.StoreRefresh(ctx, u.ID, "expired", now.Add(-time.Hour), now.Add(-2*time.Hour)) //nolint:errcheck // test setup
	repo.StoreRefresh(ctx, u.ID, "revoked", now.Add(time.Hour), now)                    //nolint:errcheck // test setup
	repo.RevokeLive(ctx, "revoked", model.RevokeLogout)                                  //nolint:errcheck // test setup

	n, err := repo.DeleteDead(ctx, now)
	if err != nil {
		t.Fatalf("DeleteDead() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}
	if _, err := repo.FindByHash(ctx, "live"); err != nil {
		t.Errorf("live token should survive the sweep: %v", err)
	}
	if _, err := repo.FindByHash(ctx, "expired"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired token should be deleted, got %v", err)
	}
}
