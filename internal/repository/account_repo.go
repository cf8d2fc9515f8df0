package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hey-chat/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (domain.Account, error)
	Save(ctx context.Context, account domain.Account) (domain.Account, error)
	TouchLastLogin(ctx context.Context, id string) (time.Time, error)
	TouchLastActive(ctx context.Context, id string) (time.Time, error)
	Delete(ctx context.Context, id string) error
}

const uniqueViolation = "23505"

const accountColumns = `
	id, username, email, password_hash, verification_state,
	otp_code_hash, otp_expires_at, session_tokens, profile,
	registered_at, last_login, last_active, updated_at, version
`

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	const query = `
		INSERT INTO accounts (id, username, email, password_hash, verification_state,
			otp_code_hash, otp_expires_at, session_tokens, profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING registered_at, updated_at, version
	`
	codeHash, expiresAt := otpColumns(account.OTP)
	err := r.pool.QueryRow(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		string(account.VerificationState),
		codeHash,
		expiresAt,
		tokensColumn(account.SessionTokens),
		account.Profile,
	).Scan(&account.RegisteredAt, &account.UpdatedAt, &account.Version)
	if err != nil {
		return domain.Account{}, mapWriteError(err)
	}
	return account, nil
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

// FindByEmailOrUsername prioriza la coincidencia por email para reportar el campo correcto.
func (r *PgAccountRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE email = $1 OR username = $2
		ORDER BY (email = $1) DESC
		LIMIT 1`
	return r.getOne(ctx, query, email, username)
}

// Save escribe el estado mutable solo si la fila sigue en account.Version;
// si otro escritor la cambio devuelve ErrStaleAccount.
func (r *PgAccountRepository) Save(ctx context.Context, account domain.Account) (domain.Account, error) {
	const query = `
		UPDATE accounts
		SET verification_state = $2,
			otp_code_hash = $3,
			otp_expires_at = $4,
			session_tokens = $5,
			profile = $6,
			updated_at = now(),
			version = version + 1
		WHERE id = $1 AND version = $7
		RETURNING updated_at, version
	`
	codeHash, expiresAt := otpColumns(account.OTP)
	err := r.pool.QueryRow(ctx, query,
		account.ID,
		string(account.VerificationState),
		codeHash,
		expiresAt,
		tokensColumn(account.SessionTokens),
		account.Profile,
		account.Version,
	).Scan(&account.UpdatedAt, &account.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, r.missingOrStale(ctx, account.ID)
	}
	if err != nil {
		return domain.Account{}, mapWriteError(err)
	}
	return account, nil
}

func (r *PgAccountRepository) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrAccountNotFound
	}
	return domain.ErrStaleAccount
}

func (r *PgAccountRepository) TouchLastLogin(ctx context.Context, id string) (time.Time, error) {
	return r.touch(ctx, `UPDATE accounts SET last_login = now() WHERE id = $1 RETURNING last_login`, id)
}

func (r *PgAccountRepository) TouchLastActive(ctx context.Context, id string) (time.Time, error) {
	return r.touch(ctx, `UPDATE accounts SET last_active = now() WHERE id = $1 RETURNING last_active`, id)
}

func (r *PgAccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *PgAccountRepository) getOne(ctx context.Context, query string, args ...any) (domain.Account, error) {
	var (
		a         domain.Account
		state     string
		codeHash  *string
		expiresAt *time.Time
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&state,
		&codeHash,
		&expiresAt,
		&a.SessionTokens,
		&a.Profile,
		&a.RegisteredAt,
		&a.LastLogin,
		&a.LastActive,
		&a.UpdatedAt,
		&a.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	a.VerificationState = domain.VerificationState(state)
	if codeHash != nil && expiresAt != nil {
		a.OTP = &domain.OTP{CodeHash: *codeHash, ExpiresAt: expiresAt.UTC()}
	}
	return a, nil
}

func (r *PgAccountRepository) touch(ctx context.Context, query, id string) (time.Time, error) {
	var ts time.Time
	err := r.pool.QueryRow(ctx, query, id).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, domain.ErrAccountNotFound
	}
	return ts, err
}

func otpColumns(otp *domain.OTP) (*string, *time.Time) {
	if otp == nil {
		return nil, nil
	}
	hash := otp.CodeHash
	exp := otp.ExpiresAt
	return &hash, &exp
}

func tokensColumn(tokens []domain.SessionToken) []domain.SessionToken {
	if tokens == nil {
		return []domain.SessionToken{}
	}
	return tokens
}

// mapWriteError traduce violaciones de unicidad al ConflictError del dominio.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return &domain.ConflictError{Field: "email"}
	case strings.Contains(pgErr.ConstraintName, "username"):
		return &domain.ConflictError{Field: "username"}
	default:
		return &domain.ConflictError{Field: "account"}
	}
}
