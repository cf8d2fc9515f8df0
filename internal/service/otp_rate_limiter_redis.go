package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// resendScript cuenta reenvios en una ventana fija que arranca con el primer hit.
var resendScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

const (
	resendKeyPrefix     = "otp:resend:"
	redisLimiterTimeout = 500 * time.Millisecond
)

// RedisOTPRateLimiter comparte el conteo de reenvios entre instancias de la API.
type RedisOTPRateLimiter struct {
	logger *zap.Logger
	client redis.Scripter
	window time.Duration
	max    int
}

func NewRedisOTPRateLimiter(logger *zap.Logger, client redis.Scripter, window time.Duration, max int) *RedisOTPRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = otpTTL
	}
	if max <= 0 {
		max = 1
	}
	return &RedisOTPRateLimiter{logger: logger, client: client, window: window, max: max}
}

// Allow falla abierto si Redis no responde; el reenvio no depende del limiter.
func (l *RedisOTPRateLimiter) Allow(ctx context.Context, key string) bool {
	emailAddr := normalizeEmail(key)
	if emailAddr == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()

	n, err := resendScript.Run(ctx, l.client, []string{resendKeyPrefix + emailAddr}, l.window.Milliseconds()).Int()
	if err != nil {
		l.logger.Warn("otp resend limiter unavailable, allowing", zap.Error(err))
		return true
	}
	return n <= l.max
}
