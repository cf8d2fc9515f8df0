package service

import (
	"testing"
	"time"

	"hey-chat/internal/domain"
)

func TestGenerateOTPCode_SixDigitString(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateOTPCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !isValidOTPCode(code) {
			t.Fatalf("expected 6 digit code, got %q", code)
		}
	}
}

func TestIssueOTP_OverwritesAndMovesToPending(t *testing.T) {
	now := time.Now().UTC()
	acc := domain.Account{VerificationState: domain.StateUnverified}

	first, err := issueOTP(&acc, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if acc.VerificationState != domain.StatePending {
		t.Fatalf("expected pending, got %s", acc.VerificationState)
	}
	if !acc.OTP.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("expected 10 minute expiry, got %v", acc.OTP.ExpiresAt)
	}
	firstHash := acc.OTP.CodeHash

	later := now.Add(3 * time.Minute)
	second, err := issueOTP(&acc, later)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if acc.OTP.CodeHash == firstHash {
		t.Fatalf("expected otp hash replaced")
	}
	if !acc.OTP.ExpiresAt.Equal(later.Add(10 * time.Minute)) {
		t.Fatalf("expected expiry reset")
	}
	if !verifyOTP(second, acc.OTP.CodeHash) {
		t.Fatalf("expected new code to verify")
	}
	if first != second && verifyOTP(first, acc.OTP.CodeHash) {
		t.Fatalf("expected old code rejected")
	}
}

func TestVerifyOTP_LeadingZerosMatter(t *testing.T) {
	hash, err := hashOTP("004217")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !verifyOTP("004217", hash) {
		t.Fatalf("expected zero padded code to verify")
	}
	if verifyOTP("4217", hash) {
		t.Fatalf("expected truncated code rejected")
	}
	if verifyOTP("004217", "malformed") {
		t.Fatalf("expected malformed stored hash rejected")
	}
}

func TestIsValidOTPCode(t *testing.T) {
	cases := map[string]bool{
		"000000":  true,
		"123456":  true,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		"":        false,
	}
	for code, want := range cases {
		if got := isValidOTPCode(code); got != want {
			t.Fatalf("isValidOTPCode(%q) = %v, want %v", code, got, want)
		}
	}
}
