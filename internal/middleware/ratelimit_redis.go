package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wolfpackcloud/robot-gateway/internal/audit"
)

const (
	rateLimitKeyPrefix = "ratelimit:pair:"
	rateLimitWindow    = 60 * time.Second
)

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local remaining = limit - count - 1
local resetAt = now + window

return {1, remaining, resetAt}
`)

// PairRateLimitMiddleware throttles the unauthenticated pairing endpoints by
// client IP with a sliding window in Redis. Redis failures fail open.
type PairRateLimitMiddleware struct {
	client *redis.Client
	limit  int
}

func NewPairRateLimitMiddleware(client *redis.Client, limit int) *PairRateLimitMiddleware {
	return &PairRateLimitMiddleware{client: client, limit: limit}
}

func (m *PairRateLimitMiddleware) check(r *http.Request) (allowed bool, remaining int, resetAt int64) {
	now := time.Now().Unix()
	key := rateLimitKeyPrefix + clientIP(r)

	result, err := rateLimitScript.Run(
		r.Context(), m.client, []string{key},
		now, int64(rateLimitWindow.Seconds()), m.limit,
	).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Msg("redis rate limit check failed, allowing request")
		return true, m.limit - 1, now + int64(rateLimitWindow.Seconds())
	}

	if len(result) != 3 {
		log.Warn().Msg("unexpected redis rate limit result")
		return true, m.limit - 1, now + int64(rateLimitWindow.Seconds())
	}

	return result[0] == 1, int(result[1]), result[2]
}

func (m *PairRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt := m.check(r)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
