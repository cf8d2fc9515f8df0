package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hey-chat/internal/domain"
	"hey-chat/internal/repository"
)

// SessionMode elige entre un unico bearer token o el par access/refresh.
type SessionMode string

const (
	SessionModePair   SessionMode = "pair"
	SessionModeSingle SessionMode = "single"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// SessionIssuer emite credenciales para una cuenta ya persistida.
type SessionIssuer interface {
	Issue(ctx context.Context, account domain.Account) (Tokens, domain.Account, error)
}

// SessionConfig agrupa secretos y duraciones de los tokens.
type SessionConfig struct {
	Mode          SessionMode
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Tokens es lo que recibe el cliente; RefreshToken va vacio en modo single.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Claims struct {
	UserID        string `json:"uid"`
	Email         string `json:"email"`
	Username      string `json:"username,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	TokenType     string `json:"typ"`
	jwt.RegisteredClaims
}

// SessionService emite, valida, rota y revoca tokens JWT.
type SessionService struct {
	logger        *zap.Logger
	accounts      repository.AccountRepository
	mode          SessionMode
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewSessionService(logger *zap.Logger, accounts repository.AccountRepository, cfg SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := cfg.Mode
	if mode != SessionModeSingle {
		mode = SessionModePair
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
		if mode == SessionModeSingle {
			accessTTL = time.Hour
		}
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	refreshSecret := cfg.RefreshSecret
	if refreshSecret == "" {
		refreshSecret = cfg.AccessSecret
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "hey-chat"
	}
	return &SessionService{
		logger:        logger,
		accounts:      accounts,
		mode:          mode,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionService) Mode() SessionMode {
	return s.mode
}

// Issue firma tokens para la cuenta; en modo pair registra el refresh jti en la cuenta.
func (s *SessionService) Issue(ctx context.Context, account domain.Account) (Tokens, domain.Account, error) {
	return s.issue(ctx, account, nil)
}

// issue corre check sobre la copia vigente de la cuenta antes de cada intento de escritura.
func (s *SessionService) issue(ctx context.Context, account domain.Account, check func(*domain.Account) error) (Tokens, domain.Account, error) {
	if len(s.accessSecret) == 0 {
		return Tokens{}, account, domain.ErrTokenInvalid
	}
	now := s.now()
	access, err := s.sign(account, now, s.accessTTL, tokenTypeAccess, "", s.accessSecret)
	if err != nil {
		return Tokens{}, account, err
	}
	tokens := Tokens{AccessToken: access, ExpiresIn: int64(s.accessTTL.Seconds())}
	if s.mode == SessionModeSingle {
		return tokens, account, nil
	}

	jti := uuid.NewString()
	refresh, err := s.sign(account, now, s.refreshTTL, tokenTypeRefresh, jti, s.refreshSecret)
	if err != nil {
		return Tokens{}, account, err
	}
	saved, err := mutateAccount(ctx, s.accounts, account, func(a *domain.Account) error {
		if check != nil {
			if err := check(a); err != nil {
				return err
			}
		}
		a.AddSessionToken(domain.SessionToken{
			ID:        jti,
			CreatedAt: now,
			ExpiresAt: now.Add(s.refreshTTL),
		}, now)
		return nil
	})
	if err != nil {
		return Tokens{}, account, err
	}
	tokens.RefreshToken = refresh
	return tokens, saved, nil
}

// ParseAccessToken distingue token expirado (refresco silencioso) de token invalido.
func (s *SessionService) ParseAccessToken(accessToken string) (Claims, error) {
	claims, err := s.parse(accessToken, s.accessSecret, false)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, domain.ErrTokenInvalid
	}
	return claims, nil
}

// Authenticate resuelve la cuenta de un access token y actualiza su ultima actividad.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (domain.Account, error) {
	claims, err := s.ParseAccessToken(accessToken)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Account{}, domain.ErrTokenInvalid
		}
		return domain.Account{}, err
	}
	if account.Email != claims.Email {
		return domain.Account{}, domain.ErrTokenInvalid
	}
	if !account.IsVerified() {
		return domain.Account{}, domain.ErrAccountUnverified
	}
	lastActive, err := s.accounts.TouchLastActive(ctx, account.ID)
	if err != nil {
		return domain.Account{}, err
	}
	account.LastActive = &lastActive
	return account, nil
}

// Refresh valida el refresh token contra la lista viva de la cuenta y lo rota.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if s.mode != SessionModePair {
		return Tokens{}, domain.ErrTokenInvalid
	}
	claims, err := s.parse(refreshToken, s.refreshSecret, false)
	if err != nil {
		return Tokens{}, err
	}
	if claims.TokenType != tokenTypeRefresh || claims.ID == "" {
		return Tokens{}, domain.ErrTokenInvalid
	}
	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return Tokens{}, domain.ErrTokenInvalid
		}
		return Tokens{}, err
	}
	tokens, _, err := s.issue(ctx, account, func(a *domain.Account) error {
		if a.Email != claims.Email || !a.HasSessionToken(claims.ID, s.now()) {
			s.logger.Info("refresh token not live", zap.String("account_id", a.ID))
			return domain.ErrTokenInvalid
		}
		a.RemoveSessionToken(claims.ID)
		return nil
	})
	return tokens, err
}

// Revoke quita el refresh token de la cuenta (logout). Acepta tokens ya expirados.
func (s *SessionService) Revoke(ctx context.Context, accountID, refreshToken string) error {
	if s.mode != SessionModePair {
		return nil
	}
	claims, err := s.parse(refreshToken, s.refreshSecret, true)
	if err != nil {
		return err
	}
	if claims.TokenType != tokenTypeRefresh || claims.ID == "" || claims.UserID != accountID {
		return domain.ErrTokenInvalid
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}
	_, err = mutateAccount(ctx, s.accounts, account, func(a *domain.Account) error {
		if !a.RemoveSessionToken(claims.ID) {
			return errNoChange
		}
		return nil
	})
	return err
}

func (s *SessionService) sign(account domain.Account, now time.Time, ttl time.Duration, tokenType, jti string, secret []byte) (string, error) {
	claims := Claims{
		UserID:        account.ID,
		Email:         account.Email,
		Username:      account.Username,
		EmailVerified: account.IsVerified(),
		TokenType:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *SessionService) parse(tokenString string, secret []byte, skipExpiry bool) (Claims, error) {
	if len(secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, domain.ErrTokenInvalid
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if skipExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, domain.ErrTokenExpired
		}
		return Claims{}, domain.ErrTokenInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, domain.ErrTokenInvalid
	}
	return claims, nil
}

func (s *SessionService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
