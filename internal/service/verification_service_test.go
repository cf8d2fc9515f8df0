package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hey-chat/internal/domain"
	"hey-chat/internal/repository"
)

type verificationFixture struct {
	repo     *repository.MemoryAccountRepository
	sender   *mockEmailSender
	clock    *testClock
	sessions *SessionService
	svc      *VerificationService
}

func newVerificationFixture(t *testing.T) verificationFixture {
	t.Helper()
	repo := repository.NewMemoryAccountRepository()
	clock := newTestClock()
	sender := &mockEmailSender{}
	sessions := newTestSessions(repo, SessionModePair, clock)
	svc := NewVerificationService(nil, repo, sender, sessions, NewOTPRateLimiter(10*time.Minute, 3))
	svc.now = clock.Now
	return verificationFixture{repo: repo, sender: sender, clock: clock, sessions: sessions, svc: svc}
}

func (f verificationFixture) register(t *testing.T) AuthResult {
	t.Helper()
	result, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return result
}

func TestRegister_CreatesPendingAccountAndSendsOTP(t *testing.T) {
	f := newVerificationFixture(t)
	result := f.register(t)

	assert.Equal(t, "alice@example.com", result.Account.Email)
	assert.Equal(t, domain.StatePending, result.Account.VerificationState)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.False(t, result.Account.RegisteredAt.IsZero())

	sent := f.sender.last(t)
	assert.Equal(t, "alice@example.com", sent.to)
	assert.Len(t, sent.code, 6)

	stored, err := f.repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.OTP)
	assert.NotEqual(t, sent.code, stored.OTP.CodeHash)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.Equal(t, sent.expiresAt, stored.OTP.ExpiresAt)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "other", Email: "alice@example.com", Password: "secret123"})
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email", conflict.Field)
	assert.Equal(t, "Email already in use", conflict.Message())

	_, err = f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "new@example.com", Password: "secret123"})
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "username", conflict.Field)
	assert.Equal(t, "Username already in use", conflict.Message())

	assert.Equal(t, 1, f.repo.Len())
}

func TestRegister_SendFailureRollsBack(t *testing.T) {
	f := newVerificationFixture(t)
	f.sender.err = errors.New("smtp unavailable")

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, domain.ErrEmailSendFailure)
	assert.Equal(t, 0, f.repo.Len())

	f.sender.err = nil
	f.register(t)
	assert.Equal(t, 1, f.repo.Len())
}

func TestRegister_RollbackFailureKeepsOriginalError(t *testing.T) {
	repo := repository.NewMemoryAccountRepository()
	clock := newTestClock()
	sender := &mockEmailSender{err: errors.New("smtp unavailable")}
	failing := failingDeleteRepo{repo}
	svc := NewVerificationService(nil, failing, sender, newTestSessions(failing, SessionModePair, clock), nil)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, domain.ErrEmailSendFailure)
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "  ", Password: "secret123"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "", Email: "alice@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, 0, f.repo.Len())
}

func TestVerifyEmail_Success(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	code := f.sender.last(t).code

	result, err := f.svc.VerifyEmail(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, result.Account.IsVerified())
	assert.Nil(t, result.Account.OTP)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	claims, err := f.sessions.ParseAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.EmailVerified)

	stored, err := f.repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, stored.VerificationState)
	assert.Nil(t, stored.OTP)

	_, err = f.svc.VerifyEmail(context.Background(), "alice@example.com", code)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestVerifyEmail_Errors(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	ctx := context.Background()
	code := f.sender.last(t).code

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := f.svc.VerifyEmail(ctx, "alice@example.com", wrong)
	assert.ErrorIs(t, err, domain.ErrOTPInvalid)

	_, err = f.svc.VerifyEmail(ctx, "alice@example.com", "12ab")
	assert.ErrorIs(t, err, domain.ErrOTPInvalid)

	_, err = f.svc.VerifyEmail(ctx, "nobody@example.com", code)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = f.svc.VerifyEmail(ctx, "", code)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestVerifyEmail_NoOTPRequested(t *testing.T) {
	f := newVerificationFixture(t)
	createAccount(t, f.repo, "bob@example.com", "bob", "secret123", domain.StateUnverified)

	_, err := f.svc.VerifyEmail(context.Background(), "bob@example.com", "123456")
	assert.ErrorIs(t, err, domain.ErrOTPNotRequested)
}

func TestVerifyEmail_ExpiredCodeReissues(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	ctx := context.Background()
	oldCode := f.sender.last(t).code

	f.clock.Advance(11 * time.Minute)
	_, err := f.svc.VerifyEmail(ctx, "alice@example.com", oldCode)
	assert.ErrorIs(t, err, domain.ErrOTPExpired)
	assert.Equal(t, 2, f.sender.count())

	newCode := f.sender.last(t).code
	stored, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, stored.VerificationState)
	assert.True(t, stored.OTP.ExpiresAt.After(f.clock.Now()))

	if newCode != oldCode {
		_, err = f.svc.VerifyEmail(ctx, "alice@example.com", oldCode)
		assert.ErrorIs(t, err, domain.ErrOTPInvalid)
	}

	result, err := f.svc.VerifyEmail(ctx, "alice@example.com", newCode)
	require.NoError(t, err)
	assert.True(t, result.Account.IsVerified())
}

func TestResendOTP(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	ctx := context.Background()

	expiresAt, err := f.svc.ResendOTP(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.sender.last(t).expiresAt, expiresAt)
	assert.Equal(t, 2, f.sender.count())

	_, err = f.svc.ResendOTP(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = f.svc.ResendOTP(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = f.svc.ResendOTP(ctx, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 4, f.sender.count())

	_, err = f.svc.ResendOTP(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestResendOTP_VerifiedAccount(t *testing.T) {
	f := newVerificationFixture(t)
	createAccount(t, f.repo, "bob@example.com", "bob", "secret123", domain.StateVerified)

	_, err := f.svc.ResendOTP(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
	assert.Equal(t, 0, f.sender.count())
}

func TestCancelVerification(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	createAccount(t, f.repo, "bob@example.com", "bob", "secret123", domain.StateVerified)
	ctx := context.Background()

	require.NoError(t, f.svc.CancelVerification(ctx, "alice@example.com"))
	_, err := f.repo.GetByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	err = f.svc.CancelVerification(ctx, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)

	err = f.svc.CancelVerification(ctx, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, 1, f.repo.Len())
}

func TestRegister_OTPSaveFailureRollsBack(t *testing.T) {
	repo := repository.NewMemoryAccountRepository()
	failing := failingSaveRepo{repo}
	sender := &mockEmailSender{}
	svc := NewVerificationService(nil, failing, sender, newTestSessions(failing, SessionModePair, newTestClock()), nil)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret123"})
	assert.Error(t, err)
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, 0, sender.count())
}

func TestVerifyEmail_WrongCodeLeavesStateUntouched(t *testing.T) {
	f := newVerificationFixture(t)
	f.register(t)
	ctx := context.Background()
	code := f.sender.last(t).code

	before, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	_, err = f.svc.VerifyEmail(ctx, "alice@example.com", wrong)
	require.ErrorIs(t, err, domain.ErrOTPInvalid)

	after, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, before.VerificationState, after.VerificationState)
	assert.Equal(t, *before.OTP, *after.OTP)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, 1, f.sender.count())
}

func TestResendOTP_DoesNotRevertConcurrentVerification(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	f.register(t)
	code := f.sender.last(t).code
	sentBefore := f.sender.count()

	repo := &hookRepo{MemoryAccountRepository: f.repo}
	svc := NewVerificationService(nil, repo, f.sender, f.sessions, NewOTPRateLimiter(10*time.Minute, 3))
	svc.now = f.clock.Now
	repo.afterRead = func() {
		_, err := f.svc.VerifyEmail(ctx, "alice@example.com", code)
		require.NoError(t, err)
	}

	_, err := svc.ResendOTP(ctx, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)

	stored, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, stored.VerificationState)
	assert.Nil(t, stored.OTP)
	assert.Equal(t, sentBefore, f.sender.count())
}

func TestVerifyEmail_ConcurrentVerificationSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	f.register(t)
	code := f.sender.last(t).code

	repo := &hookRepo{MemoryAccountRepository: f.repo}
	svc := NewVerificationService(nil, repo, f.sender, f.sessions, nil)
	svc.now = f.clock.Now
	repo.afterRead = func() {
		_, err := f.svc.VerifyEmail(ctx, "alice@example.com", code)
		require.NoError(t, err)
	}

	_, err := svc.VerifyEmail(ctx, "alice@example.com", code)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)

	stored, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, stored.VerificationState)
	assert.Len(t, stored.SessionTokens, 2)
}
