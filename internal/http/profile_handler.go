package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hey-chat/internal/domain"
	"hey-chat/internal/service"
)

// ProfileHandler expone el perfil y los flags de validacion del usuario autenticado.
type ProfileHandler struct {
	logger   *zap.Logger
	profiles *service.ProfileService
}

func NewProfileHandler(logger *zap.Logger, profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{logger: logger, profiles: profiles}
}

type profileView struct {
	userView
	FirstName      string     `json:"firstName,omitempty"`
	LastName       string     `json:"lastName,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	DateOfBirth    string     `json:"dateOfBirth,omitempty"`
	ProfilePicture string     `json:"profilePicture"`
	CoverPicture   string     `json:"coverPicture"`
	RegisteredAt   time.Time  `json:"registeredAt"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	LastActive     *time.Time `json:"lastActive,omitempty"`
}

func newProfileView(a domain.Account) profileView {
	v := profileView{
		userView:       newUserView(a),
		ProfilePicture: domain.DefaultProfilePicture,
		CoverPicture:   domain.DefaultCoverPicture,
		RegisteredAt:   a.RegisteredAt,
		LastLogin:      a.LastLogin,
		LastActive:     a.LastActive,
	}
	if p := a.Profile; p != nil {
		v.FirstName = p.FirstName
		v.LastName = p.LastName
		v.Bio = p.Bio
		v.Gender = p.Gender
		if p.DateOfBirth != nil {
			v.DateOfBirth = p.DateOfBirth.Format("2006-01-02")
		}
		if p.ProfilePicture != "" {
			v.ProfilePicture = p.ProfilePicture
		}
		if p.CoverPicture != "" {
			v.CoverPicture = p.CoverPicture
		}
	}
	return v
}

// GetProfile maneja GET /profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	account, err := h.profiles.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, "get profile", err)
		return
	}
	respondOK(c, http.StatusOK, "Profile fetched", gin.H{"profile": newProfileView(account)})
}

// CompleteProfile maneja PUT /profile/complete.
func (h *ProfileHandler) CompleteProfile(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	var req service.ProfileInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, "complete profile", err)
		return
	}
	account, err := h.profiles.CompleteProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		respondError(c, h.logger, "complete profile", err)
		return
	}
	respondOK(c, http.StatusOK, "Profile completed", gin.H{"profile": newProfileView(account)})
}

// IsVerified maneja GET /validation/is-verified.
func (h *ProfileHandler) IsVerified(c *gin.Context) {
	status, ok := h.status(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, "Verification status", gin.H{"isVerified": status.IsVerified})
}

// IsProfileComplete maneja GET /validation/is-profile-complete.
func (h *ProfileHandler) IsProfileComplete(c *gin.Context) {
	status, ok := h.status(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, "Profile status", gin.H{"isProfileComplete": status.IsProfileComplete})
}

func (h *ProfileHandler) status(c *gin.Context) (service.ProfileStatus, bool) {
	claims, ok := h.claims(c)
	if !ok {
		return service.ProfileStatus{}, false
	}
	status, err := h.profiles.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, "profile status", err)
		return service.ProfileStatus{}, false
	}
	return status, true
}

func (h *ProfileHandler) claims(c *gin.Context) (service.Claims, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondAPIError(c, apiError{status: http.StatusUnauthorized, code: codeInvalidToken, message: "Invalid token"})
		return service.Claims{}, false
	}
	return claims, true
}
