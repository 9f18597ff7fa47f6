package middleware

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"gopay-checkout/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Gateway callbacks (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// Checkout API (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

const visitorTTL = 3 * time.Minute

// strictPaths are reachable by anyone holding a notify URL.
var strictPaths = map[string]bool{
	"/payments/notify": true,
}

type tier struct {
	name  string
	limit rate.Limit
	burst int
}

var (
	tierStrict   = tier{"strict", limitStrict, burstStrict}
	tierGeneral  = tier{"general", limitGeneral, burstGeneral}
	tierInternal = tier{"internal", limitInternal, burstInternal}
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	visitors = make(map[string]*visitor)
	mu       sync.Mutex
)

// init starts the background cleanup routine.
func init() {
	go cleanupVisitors()
}

// getVisitor retrieves or creates a rate limiter for the given key.
func getVisitor(key string, t tier) *rate.Limiter {
	mu.Lock()
	defer mu.Unlock()

	v, exists := visitors[key]
	if !exists {
		limiter := rate.NewLimiter(t.limit, t.burst)
		visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		pruneVisitors(time.Now())
	}
}

func pruneVisitors(now time.Time) {
	mu.Lock()
	defer mu.Unlock()
	for key, v := range visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(visitors, key)
		}
	}
}

// RateLimitMiddleware rejects requests over the quota of their tier.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := resolveRateTier(r)

		// Same client gets separate buckets per tier, e.g. "ip:10.0.0.1:strict".
		key := clientIdentity(r) + ":" + t.name

		limiter := getVisitor(key, t)
		if !limiter.Allow() {
			logger.FromCtx(r.Context()).Warn("rate limited",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(t)))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIdentity(r *http.Request) string {
	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
		return "device:" + deviceID
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

// resolveRateTier determines which rate limit policy applies to the request.
func resolveRateTier(r *http.Request) tier {
	internalKey := os.Getenv("INTERNAL_SECRET_KEY")
	if internalKey != "" && r.Header.Get("X-Service-Auth") == internalKey {
		return tierInternal
	}

	if strictPaths[r.URL.Path] {
		return tierStrict
	}

	return tierGeneral
}

func retryAfterSeconds(t tier) int {
	secs := int(1 / float64(t.limit))
	if secs < 1 {
		secs = 1
	}
	return secs
}
