package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"hey-chat/internal/domain"
)

const (
	otpTTL    = 10 * time.Minute
	otpDigits = 6
)

var otpSpace = big.NewInt(1000000)

// GenerateOTPCode devuelve un codigo uniforme en 000000..999999, siempre con 6 caracteres.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// issueOTP reemplaza cualquier codigo previo y mueve la cuenta a pending.
func issueOTP(account *domain.Account, now time.Time) (string, error) {
	code, err := GenerateOTPCode()
	if err != nil {
		return "", err
	}
	hash, err := hashOTP(code)
	if err != nil {
		return "", err
	}
	account.OTP = &domain.OTP{
		CodeHash:  hash,
		ExpiresAt: now.Add(otpTTL),
	}
	if account.VerificationState != domain.StateVerified {
		account.VerificationState = domain.StatePending
	}
	return code, nil
}

func hashOTP(code string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	sum := sha256.Sum256([]byte(saltStr + ":" + code))
	return saltStr + ":" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	sum := sha256.Sum256([]byte(parts[0] + ":" + code))
	hash := base64.StdEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(parts[1])) == 1
}

func isValidOTPCode(code string) bool {
	if len(code) != otpDigits {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
