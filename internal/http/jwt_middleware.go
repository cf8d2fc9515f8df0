package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hey-chat/internal/service"
)

const authClaimsKey = "auth_claims"

// AccessTokenParser valida un access token y devuelve sus claims.
type AccessTokenParser interface {
	ParseAccessToken(token string) (service.Claims, error)
}

// JWTAuthMiddleware valida el access token y guarda claims en el contexto.
// Un token vencido responde TOKEN_EXPIRED para que el cliente use el refresh token.
func JWTAuthMiddleware(logger *zap.Logger, sessions AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			respondAPIError(c, apiError{status: http.StatusInternalServerError, code: codeInternal, message: "Authentication not configured"})
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			respondAPIError(c, apiError{status: http.StatusUnauthorized, code: codeInvalidToken, message: "Authorization token missing"})
			return
		}

		claims, err := sessions.ParseAccessToken(token)
		if err != nil {
			respondError(c, logger, "parse access token", err)
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
