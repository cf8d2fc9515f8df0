package email

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSenderDisabled lo devuelve el Sender de reemplazo cuando no hay SMTP configurado.
var ErrSenderDisabled = errors.New("email sender disabled")

// Sender entrega el codigo de verificacion al email de la cuenta.
type Sender interface {
	SendVerificationOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

// NewDisabledSender devuelve un Sender que siempre falla, asi el registro se revierte.
func NewDisabledSender(reason string) Sender {
	return disabledSender{reason: reason}
}

func (s disabledSender) SendVerificationOTP(_ context.Context, toEmail string, _ string, _ time.Time) error {
	if s.reason == "" {
		return fmt.Errorf("otp for %s: %w", toEmail, ErrSenderDisabled)
	}
	return fmt.Errorf("otp for %s: %w: %s", toEmail, ErrSenderDisabled, s.reason)
}
