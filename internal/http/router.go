package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Pinger es cualquier dependencia que /healthz debe poder alcanzar.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	profileH *ProfileHandler,
	sessions AccessTokenParser,
	store Pinger,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(logger, store))

	requireAuth := JWTAuthMiddleware(logger, sessions)

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/verify", authH.VerifyEmail)
	auth.POST("/resend-otp", authH.ResendOTP)
	auth.POST("/verify/cancel", authH.CancelVerification)
	auth.POST("/login", authH.Login)
	auth.GET("/verify-token", authH.VerifyToken)
	auth.POST("/refresh-token", authH.RefreshToken)
	auth.POST("/logout", requireAuth, authH.Logout)

	profile := r.Group("/profile", requireAuth)
	profile.GET("", profileH.GetProfile)
	profile.PUT("/complete", profileH.CompleteProfile)

	validation := r.Group("/validation", requireAuth)
	validation.GET("/is-verified", profileH.IsVerified)
	validation.GET("/is-profile-complete", profileH.IsProfileComplete)

	return r
}

func healthHandler(logger *zap.Logger, store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				respondAPIError(c, apiError{status: http.StatusServiceUnavailable, message: "Store unavailable"})
				return
			}
		}
		respondOK(c, http.StatusOK, "ok", nil)
	}
}

// zapLoggerMiddleware loguea cada request con su id de correlacion.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
