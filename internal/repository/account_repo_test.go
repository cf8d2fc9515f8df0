package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hey-chat/internal/domain"
)

func TestMapWriteError(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		wantField  string
	}{
		{name: "email", constraint: "accounts_email_key", wantField: "email"},
		{name: "username", constraint: "accounts_username_key", wantField: "username"},
		{name: "other", constraint: "accounts_pkey", wantField: "account"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapWriteError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: tc.constraint})
			var conflict *domain.ConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, tc.wantField, conflict.Field)
		})
	}

	other := errors.New("connection reset")
	assert.Same(t, other, mapWriteError(other))
	fk := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, error(fk), mapWriteError(fk))
}

func TestOTPColumnsAndTokensColumn(t *testing.T) {
	hash, exp := otpColumns(nil)
	assert.Nil(t, hash)
	assert.Nil(t, exp)

	at := time.Now().UTC()
	hash, exp = otpColumns(&domain.OTP{CodeHash: "salt:hash", ExpiresAt: at})
	require.NotNil(t, hash)
	require.NotNil(t, exp)
	assert.Equal(t, "salt:hash", *hash)
	assert.True(t, exp.Equal(at))

	assert.NotNil(t, tokensColumn(nil))
	assert.Len(t, tokensColumn(nil), 0)
}

func TestMemoryAccountRepository_CreateConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	_, err := repo.Create(ctx, domain.Account{ID: "a1", Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, domain.Account{ID: "a2", Username: "bob", Email: "a@x.com"})
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email", conflict.Field)

	_, err = repo.Create(ctx, domain.Account{ID: "a3", Username: "alice", Email: "b@x.com"})
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "username", conflict.Field)
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryAccountRepository_StoreAssignsTimestamps(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewMemoryAccountRepository().WithClock(func() time.Time { return fixed })

	client := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	created, err := repo.Create(ctx, domain.Account{
		ID: "a1", Username: "alice", Email: "a@x.com",
		RegisteredAt: client, LastLogin: &client,
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, created.RegisteredAt)
	assert.Nil(t, created.LastLogin)

	ts, err := repo.TouchLastLogin(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, fixed, ts)

	ts, err = repo.TouchLastActive(ctx, "a1")
	require.NoError(t, err)
	stored, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastActive)
	assert.Equal(t, ts, *stored.LastActive)
}

func TestMemoryAccountRepository_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()
	acc, err := repo.Create(ctx, domain.Account{ID: "a1", Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)

	acc.VerificationState = domain.StatePending
	acc.OTP = &domain.OTP{CodeHash: "h", ExpiresAt: time.Now().Add(time.Minute)}
	_, err = repo.Save(ctx, acc)
	require.NoError(t, err)

	acc.OTP.CodeHash = "mutated-after-save"
	stored, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, stored.VerificationState)
	assert.Equal(t, "h", stored.OTP.CodeHash)

	found, err := repo.FindByEmailOrUsername(ctx, "other@x.com", "alice")
	require.NoError(t, err)
	assert.Equal(t, "a1", found.ID)

	require.NoError(t, repo.Delete(ctx, "a1"))
	assert.ErrorIs(t, repo.Delete(ctx, "a1"), domain.ErrAccountNotFound)
	_, err = repo.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = repo.Save(ctx, acc)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMemoryAccountRepository_SaveRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()
	acc, err := repo.Create(ctx, domain.Account{ID: "a1", Username: "alice", Email: "a@x.com", VerificationState: domain.StatePending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.Version)

	verified := acc
	verified.VerificationState = domain.StateVerified
	saved, err := repo.Save(ctx, verified)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	acc.OTP = &domain.OTP{CodeHash: "h", ExpiresAt: time.Now().Add(time.Minute)}
	_, err = repo.Save(ctx, acc)
	assert.ErrorIs(t, err, domain.ErrStaleAccount)

	stored, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, stored.VerificationState)
	assert.Nil(t, stored.OTP)
	assert.Equal(t, int64(2), stored.Version)
}
