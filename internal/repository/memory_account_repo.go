package repository

import (
	"context"
	"sync"
	"time"

	"hey-chat/internal/domain"
)

// MemoryAccountRepository guarda cuentas en memoria con las mismas reglas de unicidad.
type MemoryAccountRepository struct {
	mu         sync.Mutex
	now        func() time.Time
	byID       map[string]domain.Account
	byEmail    map[string]string
	byUsername map[string]string
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		now:        func() time.Time { return time.Now().UTC() },
		byID:       make(map[string]domain.Account),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// WithClock reemplaza el reloj usado para timestamps asignados por el store.
func (r *MemoryAccountRepository) WithClock(now func() time.Time) *MemoryAccountRepository {
	r.now = now
	return r
}

func (r *MemoryAccountRepository) Create(_ context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[account.Email]; ok {
		return domain.Account{}, &domain.ConflictError{Field: "email"}
	}
	if _, ok := r.byUsername[account.Username]; ok {
		return domain.Account{}, &domain.ConflictError{Field: "username"}
	}
	now := r.now()
	account.RegisteredAt = now
	account.UpdatedAt = now
	account.LastLogin = nil
	account.LastActive = nil
	account.Version = 1
	account = cloneAccount(account)
	r.byID[account.ID] = account
	r.byEmail[account.Email] = account.ID
	r.byUsername[account.Username] = account.ID
	return cloneAccount(account), nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return cloneAccount(r.byID[id]), nil
}

func (r *MemoryAccountRepository) FindByEmailOrUsername(_ context.Context, email, username string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byEmail[email]; ok {
		return cloneAccount(r.byID[id]), nil
	}
	if id, ok := r.byUsername[username]; ok {
		return cloneAccount(r.byID[id]), nil
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *MemoryAccountRepository) Save(_ context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[account.ID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if stored.Version != account.Version {
		return domain.Account{}, domain.ErrStaleAccount
	}
	stored.VerificationState = account.VerificationState
	stored.OTP = account.OTP
	stored.SessionTokens = account.SessionTokens
	stored.Profile = account.Profile
	stored.UpdatedAt = r.now()
	stored.Version++
	stored = cloneAccount(stored)
	r.byID[account.ID] = stored

	account.UpdatedAt = stored.UpdatedAt
	account.Version = stored.Version
	return account, nil
}

func (r *MemoryAccountRepository) TouchLastLogin(_ context.Context, id string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return time.Time{}, domain.ErrAccountNotFound
	}
	now := r.now()
	a.LastLogin = &now
	r.byID[id] = a
	return now, nil
}

func (r *MemoryAccountRepository) TouchLastActive(_ context.Context, id string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return time.Time{}, domain.ErrAccountNotFound
	}
	now := r.now()
	a.LastActive = &now
	r.byID[id] = a
	return now, nil
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, a.Email)
	delete(r.byUsername, a.Username)
	return nil
}

// Len devuelve la cantidad de cuentas guardadas.
func (r *MemoryAccountRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func cloneAccount(a domain.Account) domain.Account {
	if a.OTP != nil {
		otp := *a.OTP
		a.OTP = &otp
	}
	if a.SessionTokens != nil {
		a.SessionTokens = append([]domain.SessionToken(nil), a.SessionTokens...)
	}
	if a.Profile != nil {
		p := *a.Profile
		a.Profile = &p
	}
	if a.LastLogin != nil {
		t := *a.LastLogin
		a.LastLogin = &t
	}
	if a.LastActive != nil {
		t := *a.LastActive
		a.LastActive = &t
	}
	return a
}
