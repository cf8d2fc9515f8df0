package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hey-chat/internal/domain"
	"hey-chat/internal/email"
	"hey-chat/internal/repository"
)

const (
	bcryptCost      = 10
	rollbackTimeout = 5 * time.Second
)

// VerificationService implementa el ciclo registro -> OTP -> verificacion/reenvio/cancelacion.
type VerificationService struct {
	logger      *zap.Logger
	accounts    repository.AccountRepository
	emailSender email.Sender
	sessions    SessionIssuer
	otpLimiter  OTPRateLimiter
	now         func() time.Time
}

func NewVerificationService(
	logger *zap.Logger,
	accounts repository.AccountRepository,
	emailSender email.Sender,
	sessions SessionIssuer,
	otpLimiter OTPRateLimiter,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(otpTTL, 3)
	}
	return &VerificationService{
		logger:      logger,
		accounts:    accounts,
		emailSender: emailSender,
		sessions:    sessions,
		otpLimiter:  otpLimiter,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthResult es la cuenta resultante junto con las credenciales emitidas.
type AuthResult struct {
	Account domain.Account
	Tokens  Tokens
}

// Register crea la cuenta, emite el OTP y lo envia; si algo falla despues de crearla, la borra.
func (s *VerificationService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return AuthResult{}, domain.ErrInvalidEmail
	}
	if username == "" || input.Password == "" {
		return AuthResult{}, domain.ErrInvalidCredentials
	}

	existing, err := s.accounts.FindByEmailOrUsername(ctx, emailAddr, username)
	switch {
	case err == nil:
		if existing.Email == emailAddr {
			return AuthResult{}, &domain.ConflictError{Field: "email"}
		}
		return AuthResult{}, &domain.ConflictError{Field: "username"}
	case !errors.Is(err, domain.ErrAccountNotFound):
		return AuthResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return AuthResult{}, err
	}

	created, err := s.accounts.Create(ctx, domain.Account{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             emailAddr,
		PasswordHash:      string(hash),
		VerificationState: domain.StateUnverified,
	})
	if err != nil {
		return AuthResult{}, err
	}

	account, err := s.sendNewOTP(ctx, created)
	if err != nil {
		s.rollbackRegistration(ctx, created.ID, err)
		return AuthResult{}, err
	}

	tokens, account, err := s.sessions.Issue(ctx, account)
	if err != nil {
		s.rollbackRegistration(ctx, created.ID, err)
		return AuthResult{}, err
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID))
	return AuthResult{Account: account, Tokens: tokens}, nil
}

// VerifyEmail compara primero el codigo y despues la expiracion; un codigo correcto
// pero vencido dispara un OTP nuevo y devuelve ErrOTPExpired.
func (s *VerificationService) VerifyEmail(ctx context.Context, emailAddr, code string) (AuthResult, error) {
	account, err := s.pendingAccount(ctx, emailAddr)
	if err != nil {
		return AuthResult{}, err
	}
	if account.OTP == nil {
		return AuthResult{}, domain.ErrOTPNotRequested
	}

	code = strings.TrimSpace(code)
	verified, err := mutateAccount(ctx, s.accounts, account, func(a *domain.Account) error {
		switch {
		case a.IsVerified():
			return domain.ErrAlreadyVerified
		case a.OTP == nil:
			return domain.ErrOTPNotRequested
		case !isValidOTPCode(code) || !verifyOTP(code, a.OTP.CodeHash):
			return domain.ErrOTPInvalid
		case a.OTP.IsExpired(s.now()):
			return domain.ErrOTPExpired
		}
		a.VerificationState = domain.StateVerified
		a.OTP = nil
		return nil
	})
	if errors.Is(err, domain.ErrOTPExpired) {
		if _, err := s.sendNewOTP(ctx, account); err != nil {
			return AuthResult{}, err
		}
		return AuthResult{}, domain.ErrOTPExpired
	}
	if err != nil {
		return AuthResult{}, err
	}

	tokens, account, err := s.sessions.Issue(ctx, verified)
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("email verified", zap.String("account_id", account.ID))
	return AuthResult{Account: account, Tokens: tokens}, nil
}

// ResendOTP emite un codigo nuevo, invalidando el anterior.
func (s *VerificationService) ResendOTP(ctx context.Context, emailAddr string) (time.Time, error) {
	account, err := s.pendingAccount(ctx, emailAddr)
	if err != nil {
		return time.Time{}, err
	}
	if !s.otpLimiter.Allow(ctx, account.Email) {
		return time.Time{}, domain.ErrRateLimited
	}
	account, err = s.sendNewOTP(ctx, account)
	if err != nil {
		return time.Time{}, err
	}
	return account.OTP.ExpiresAt, nil
}

// CancelVerification descarta un registro no verificado.
func (s *VerificationService) CancelVerification(ctx context.Context, emailAddr string) error {
	account, err := s.pendingAccount(ctx, emailAddr)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return err
	}
	s.logger.Info("verification cancelled", zap.String("account_id", account.ID))
	return nil
}

func (s *VerificationService) pendingAccount(ctx context.Context, emailAddr string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.Account{}, domain.ErrInvalidEmail
	}
	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		return domain.Account{}, err
	}
	if account.IsVerified() {
		return domain.Account{}, domain.ErrAlreadyVerified
	}
	return account, nil
}

// sendNewOTP persiste un OTP nuevo y lo envia por email; nunca pisa una cuenta ya verificada.
func (s *VerificationService) sendNewOTP(ctx context.Context, account domain.Account) (domain.Account, error) {
	var code string
	saved, err := mutateAccount(ctx, s.accounts, account, func(a *domain.Account) error {
		if a.IsVerified() {
			return domain.ErrAlreadyVerified
		}
		var err error
		code, err = issueOTP(a, s.now())
		return err
	})
	if err != nil {
		return domain.Account{}, err
	}
	if s.emailSender == nil {
		return domain.Account{}, domain.ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerificationOTP(ctx, saved.Email, code, saved.OTP.ExpiresAt); err != nil {
		s.logger.Warn("send verification otp failed", zap.Error(err), zap.String("account_id", saved.ID))
		return domain.Account{}, domain.ErrEmailSendFailure
	}
	return saved, nil
}

// rollbackRegistration es best-effort: su fallo se loguea pero no reemplaza la causa original.
func (s *VerificationService) rollbackRegistration(ctx context.Context, accountID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		s.logger.Error("registration cleanup failed",
			zap.String("account_id", accountID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("registration rolled back", zap.String("account_id", accountID), zap.Error(cause))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
