package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hey-chat/internal/config"
	"hey-chat/internal/db"
	"hey-chat/internal/email"
	apihttp "hey-chat/internal/http"
	"hey-chat/internal/logging"
	"hey-chat/internal/media"
	"hey-chat/internal/repository"
	"hey-chat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBRunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	accountRepo := repository.NewPgAccountRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	resendWindow := time.Duration(cfg.OTPResendWindowMinutes) * time.Minute
	otpLimiter := service.NewOTPRateLimiter(resendWindow, cfg.OTPResendMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory otp limiter", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(logger, redisClient, resendWindow, cfg.OTPResendMax)
		}
		cancel()
	}

	var uploader media.Uploader = media.NewDisabledUploader()
	if cfg.MediaEnabled() {
		s3Uploader, err := media.NewS3Uploader(ctx, logger, media.S3Config{
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Warn("s3 uploader init failed", zap.Error(err))
		} else {
			uploader = s3Uploader
		}
	}

	sessionSvc := service.NewSessionService(logger, accountRepo, service.SessionConfig{
		Mode:          service.SessionMode(cfg.JWTMode),
		AccessSecret:  cfg.AccessSecret(),
		RefreshSecret: cfg.RefreshSecret(),
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    time.Duration(cfg.JWTRefreshTTLMinutes) * time.Minute,
	})
	verificationSvc := service.NewVerificationService(logger, accountRepo, emailSender, sessionSvc, otpLimiter)
	authSvc := service.NewAuthService(logger, accountRepo, sessionSvc)
	profileSvc := service.NewProfileService(logger, accountRepo, uploader)

	router := apihttp.NewRouter(
		logger,
		apihttp.NewAuthHandler(logger, verificationSvc, authSvc, sessionSvc),
		apihttp.NewProfileHandler(logger, profileSvc),
		sessionSvc,
		pool,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("jwt_mode", string(sessionSvc.Mode())),
		zap.Bool("media_enabled", cfg.MediaEnabled()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
