package domain

import (
	"sort"
	"time"
)

// VerificationState representa el estado de verificacion de email de una cuenta.
type VerificationState string

const (
	StateUnverified VerificationState = "unverified"
	StatePending    VerificationState = "pending"
	StateVerified   VerificationState = "verified"
)

// MaxSessionTokens es el maximo de refresh tokens vivos por cuenta.
const MaxSessionTokens = 5

const (
	DefaultProfilePicture = "/default-avatar.png"
	DefaultCoverPicture   = "/default-cover.png"
)

// Account es el registro de identidad que posee el Credential Store.
type Account struct {
	ID                string            `json:"id"`
	Username          string            `json:"username"`
	Email             string            `json:"email"`
	PasswordHash      string            `json:"-"`
	VerificationState VerificationState `json:"verification_state"`
	OTP               *OTP              `json:"-"`
	SessionTokens     []SessionToken    `json:"-"`
	Profile           *Profile          `json:"profile,omitempty"`
	RegisteredAt      time.Time         `json:"registered_at"`
	LastLogin         *time.Time        `json:"last_login,omitempty"`
	LastActive        *time.Time        `json:"last_active,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
	// Version crece en cada Save; el store rechaza escrituras sobre una version vieja.
	Version int64 `json:"-"`
}

// OTP guarda el hash del codigo activo y su expiracion.
type OTP struct {
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reporta si el codigo ya no es valido en now.
func (o OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// SessionToken es la entrada de un refresh token emitido (identificado por jti).
type SessionToken struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Profile agrupa los datos que el usuario completa tras verificar su email.
type Profile struct {
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	ProfilePicture string     `json:"profile_picture"`
	CoverPicture   string     `json:"cover_picture"`
	Gender         string     `json:"gender,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (a Account) IsVerified() bool {
	return a.VerificationState == StateVerified
}

// IsProfileComplete reporta si el perfil fue completado al menos una vez.
func (a Account) IsProfileComplete() bool {
	return a.Profile != nil && a.Profile.CompletedAt != nil
}

// HasSessionToken reporta si el jti sigue vivo en la lista de la cuenta.
func (a Account) HasSessionToken(id string, now time.Time) bool {
	for _, t := range a.SessionTokens {
		if t.ID == id {
			return now.Before(t.ExpiresAt)
		}
	}
	return false
}

// AddSessionToken agrega un token y poda expirados, conservando los MaxSessionTokens mas recientes.
func (a *Account) AddSessionToken(token SessionToken, now time.Time) {
	a.SessionTokens = append(a.SessionTokens, token)
	a.PruneSessionTokens(now)
}

// RemoveSessionToken quita un jti; devuelve false si no estaba.
func (a *Account) RemoveSessionToken(id string) bool {
	kept := make([]SessionToken, 0, len(a.SessionTokens))
	removed := false
	for _, t := range a.SessionTokens {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	a.SessionTokens = kept
	return removed
}

// PruneSessionTokens descarta expirados y deja solo los mas recientes.
func (a *Account) PruneSessionTokens(now time.Time) {
	live := make([]SessionToken, 0, len(a.SessionTokens))
	for _, t := range a.SessionTokens {
		if now.Before(t.ExpiresAt) {
			live = append(live, t)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})
	if len(live) > MaxSessionTokens {
		live = live[len(live)-MaxSessionTokens:]
	}
	a.SessionTokens = live
}
