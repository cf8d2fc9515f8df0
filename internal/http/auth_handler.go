package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hey-chat/internal/domain"
	"hey-chat/internal/service"
)

// AuthHandler expone registro, verificacion de email y sesiones.
type AuthHandler struct {
	logger       *zap.Logger
	verification *service.VerificationService
	auth         *service.AuthService
	sessions     *service.SessionService
}

func NewAuthHandler(
	logger *zap.Logger,
	verification *service.VerificationService,
	auth *service.AuthService,
	sessions *service.SessionService,
) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		verification: verification,
		auth:         auth,
		sessions:     sessions,
	}
}

type userView struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	IsVerified        bool   `json:"isVerified"`
	IsProfileComplete bool   `json:"isProfileComplete"`
}

func newUserView(a domain.Account) userView {
	return userView{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		IsVerified:        a.IsVerified(),
		IsProfileComplete: a.IsProfileComplete(),
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=20"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	result, err := h.verification.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}
	h.respondSession(c, http.StatusCreated, "Registration successful. Please verify your email", result)
}

// VerifyEmail maneja POST /auth/verify.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required,len=6,numeric"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "verify email", err)
		return
	}

	result, err := h.verification.VerifyEmail(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondError(c, h.logger, "verify email", err)
		return
	}
	h.respondSession(c, http.StatusOK, "Email verified successfully", result)
}

// ResendOTP maneja POST /auth/resend-otp.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "resend otp", err)
		return
	}

	expiresAt, err := h.verification.ResendOTP(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "resend otp", err)
		return
	}
	respondOK(c, http.StatusOK, "A new OTP has been sent to your email", gin.H{"expiresAt": expiresAt})
}

// CancelVerification maneja POST /auth/verify/cancel.
func (h *AuthHandler) CancelVerification(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "cancel verification", err)
		return
	}

	if err := h.verification.CancelVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "cancel verification", err)
		return
	}
	respondOK(c, http.StatusOK, "Verification cancelled and registration removed", nil)
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}
	h.respondSession(c, http.StatusOK, "Login successful", result)
}

// VerifyToken maneja GET /auth/verify-token.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		respondAPIError(c, apiError{status: http.StatusUnauthorized, code: codeInvalidToken, message: "Authorization token missing"})
		return
	}

	account, err := h.sessions.Authenticate(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.logger, "verify token", err)
		return
	}
	respondOK(c, http.StatusOK, "Token is valid", gin.H{"user": newUserView(account)})
}

// RefreshToken maneja POST /auth/refresh-token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "refresh token", err)
		return
	}

	tokens, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, "refresh token", err)
		return
	}
	respondOK(c, http.StatusOK, "Token refreshed", gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresIn":    tokens.ExpiresIn,
	})
}

// Logout maneja POST /auth/logout; en modo single no hay nada que revocar.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondAPIError(c, apiError{status: http.StatusUnauthorized, code: codeInvalidToken, message: "Invalid token"})
		return
	}
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			respondError(c, h.logger, "logout", err)
			return
		}
	}
	if h.sessions.Mode() == service.SessionModePair && req.RefreshToken == "" {
		respondError(c, h.logger, "logout", &domain.ValidationError{Fields: map[string]string{"refreshToken": "is required"}})
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), claims.UserID, req.RefreshToken); err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	respondOK(c, http.StatusOK, "Logged out successfully", nil)
}

// respondSession devuelve {tokens, user} en modo pair o {token, user} en modo single.
func (h *AuthHandler) respondSession(c *gin.Context, status int, message string, result service.AuthResult) {
	payload := gin.H{"user": newUserView(result.Account)}
	if h.sessions.Mode() == service.SessionModeSingle {
		payload["token"] = result.Tokens.AccessToken
	} else {
		payload["tokens"] = result.Tokens
	}
	respondOK(c, status, message, payload)
}
