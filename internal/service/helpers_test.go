package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/restaurant-auth/internal/database"
	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/queue"
	"github.com/iliyamo/restaurant-auth/internal/repository"
	"github.com/iliyamo/restaurant-auth/internal/token"
	"github.com/iliyamo/restaurant-auth/internal/utils"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func (p *recordingPublisher) has(typ string) bool {
	for _, t := range p.types() {
		if t == typ {
			return true
		}
	}
	return false
}

type testEnv struct {
	clock   *testClock
	users   *repository.UserRepo
	tokens  *repository.TokenRepo
	codec   *token.Codec
	refresh *RefreshService
	auth    *AuthService
	events  *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db, "sqlite3"); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	clock := &testClock{t: time.Now().UTC()}
	events := &recordingPublisher{}

	codec, err := token.NewCodec("service-test-secret-0123456789abcdef", 15*time.Minute, "")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	codec.Now = clock.Now

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	refresh := NewRefreshService(tokens, DefaultRefreshTTL)
	refresh.Now = clock.Now
	refresh.Events = events

	auth := NewAuthService(users, refresh, codec, utils.NewPasswordHasher(bcrypt.MinCost))
	auth.Now = clock.Now
	auth.Events = events

	return &testEnv{clock: clock, users: users, tokens: tokens, codec: codec, refresh: refresh, auth: auth, events: events}
}

// register creates an active identity through the service.
func (e *testEnv) register(t *testing.T, username string, role model.Role, password string) AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return res
}
