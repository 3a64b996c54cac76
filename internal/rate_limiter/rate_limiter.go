package ratelimiter

import (
	"sync"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter gives every client key its own token bucket refilling
// RequestsPerTimeFrame tokens per TimeFrame.
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	// idle buckets are swept at most once per idleTTL
	nextSweep time.Time
	enabled   bool
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewRateLimiter(cfg config.RateLimiterConfig, logger *zap.SugaredLogger) *ClientRateLimiter {
	// For unit test
	if logger == nil {
		logger = util.NewLogger("test")
	}

	timeFrame := cfg.TimeFrame
	if timeFrame <= 0 {
		timeFrame = time.Minute
	}

	return &ClientRateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(cfg.RequestsPerTimeFrame) / timeFrame.Seconds()),
		burst:   cfg.RequestsPerTimeFrame,
		idleTTL: 3 * timeFrame,
		enabled: cfg.Enabled && cfg.RequestsPerTimeFrame > 0,
		logger:  logger,
		now:     time.Now,
	}
}

func (rl *ClientRateLimiter) Enabled() bool {
	return rl.enabled
}

// Allow spends one token of key's bucket. Every idleTTL it also drops buckets
// idle long enough to be full again.
func (rl *ClientRateLimiter) Allow(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, ok := rl.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now

	if !now.Before(rl.nextSweep) {
		rl.sweep(now)
	}

	allowed := client.limiter.AllowN(now, 1)
	if !allowed {
		rl.logger.Debugf("Rate limit exceeded for client %s", key)
	}
	return allowed
}

// sweep must be called with mu held.
func (rl *ClientRateLimiter) sweep(now time.Time) {
	for k, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idleTTL {
			delete(rl.clients, k)
		}
	}
	rl.nextSweep = now.Add(rl.idleTTL)
}
