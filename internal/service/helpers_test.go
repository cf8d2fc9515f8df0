package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hey-chat/internal/domain"
	"hey-chat/internal/repository"
)

type sentOTP struct {
	to        string
	code      string
	expiresAt time.Time
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []sentOTP
	err  error
}

func (m *mockEmailSender) SendVerificationOTP(_ context.Context, toEmail, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentOTP{to: toEmail, code: code, expiresAt: expiresAt})
	return nil
}

func (m *mockEmailSender) last(t *testing.T) sentOTP {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("expected an email to be sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockEmailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// testClock avanza un segundo en cada lectura para que los CreatedAt queden ordenados.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingDeleteRepo struct {
	*repository.MemoryAccountRepository
}

func (r failingDeleteRepo) Delete(context.Context, string) error {
	return errors.New("db down")
}

func createAccount(t *testing.T, repo repository.AccountRepository, email, username, password string, state domain.VerificationState) domain.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account, err := repo.Create(context.Background(), domain.Account{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             email,
		PasswordHash:      string(hash),
		VerificationState: state,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func newTestSessions(repo repository.AccountRepository, mode SessionMode, clock *testClock) *SessionService {
	svc := NewSessionService(nil, repo, SessionConfig{
		Mode:          mode,
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	svc.now = clock.Now
	return svc
}

type failingSaveRepo struct {
	*repository.MemoryAccountRepository
}

func (r failingSaveRepo) Save(context.Context, domain.Account) (domain.Account, error) {
	return domain.Account{}, errors.New("db down")
}

// hookRepo ejecuta afterRead una sola vez, justo despues de la siguiente lectura.
type hookRepo struct {
	*repository.MemoryAccountRepository
	afterRead func()
}

func (r *hookRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	a, err := r.MemoryAccountRepository.GetByID(ctx, id)
	r.fire()
	return a, err
}

func (r *hookRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	a, err := r.MemoryAccountRepository.GetByEmail(ctx, email)
	r.fire()
	return a, err
}

func (r *hookRepo) fire() {
	if f := r.afterRead; f != nil {
		r.afterRead = nil
		f()
	}
}
