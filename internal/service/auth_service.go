package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hey-chat/internal/domain"
	"hey-chat/internal/repository"
)

// AuthService resuelve el login con email y password.
type AuthService struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
	sessions SessionIssuer
}

func NewAuthService(logger *zap.Logger, accounts repository.AccountRepository, sessions SessionIssuer) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:   logger,
		accounts: accounts,
		sessions: sessions,
	}
}

// Login rechaza cuentas sin verificar antes de mirar el password.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (AuthResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return AuthResult{}, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return AuthResult{}, domain.ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !account.IsVerified() {
		return AuthResult{}, domain.ErrAccountUnverified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, domain.ErrInvalidCredentials
	}

	lastLogin, err := s.accounts.TouchLastLogin(ctx, account.ID)
	if err != nil {
		return AuthResult{}, err
	}
	account.LastLogin = &lastLogin

	tokens, account, err := s.sessions.Issue(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("login succeeded", zap.String("account_id", account.ID))
	return AuthResult{Account: account, Tokens: tokens}, nil
}
