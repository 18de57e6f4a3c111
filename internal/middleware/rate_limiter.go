package middleware

import (
	"net/http"
	"sync"
	"time"

	"tallerpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// windowEntry tracks request counts per IP within a sliding window.
type windowEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

type windowMap struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

func newWindowMap() *windowMap {
	return &windowMap{entries: make(map[string]*windowEntry)}
}

func (m *windowMap) get(ip string) *windowEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[ip]
	if !ok {
		entry = &windowEntry{}
		m.entries[ip] = entry
	}
	return entry
}

func (m *windowMap) purge(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for ip, entry := range m.entries {
		entry.mu.Lock()
		if now.After(entry.windowEnd) {
			delete(m.entries, ip)
			purged++
		}
		entry.mu.Unlock()
	}
	return purged
}

var (
	loginMap = newWindowMap()
	apiMap   = newWindowMap()
)

func limitByWindow(m *windowMap, limit int, window time.Duration, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := m.get(c.ClientIP())

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			entry.count = 0
			entry.windowEnd = now.Add(window)
		}

		entry.count++
		if entry.count > limit {
			c.Header("Retry-After", entry.windowEnd.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return limitByWindow(loginMap, 20, time.Minute, "too many login attempts, retry in a minute")
}

// RateLimiter returns a general-purpose sliding-window rate limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return limitByWindow(apiMap, limit, window, "too many requests, retry shortly")
}

// Periodically removes expired entries from both limiter maps so IPs that
// never return do not accumulate.
const purgeInterval = 5 * time.Minute

func init() {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			purged := loginMap.purge(now) + apiMap.purge(now)
			if purged > 0 {
				log.Debug().Int("purged", purged).Msg("rate limiter maps purged")
			}
		}
	}()
}
