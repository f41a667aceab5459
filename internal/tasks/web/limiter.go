package web

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter throttles login attempts per client address. Entries idle
// for an hour are dropped on the next sweep to bound memory.
type ipLimiter struct {
	mu      sync.Mutex
	perMin  int
	clients map[string]*client
	sweepAt time.Time
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(perMin int) *ipLimiter {
	return &ipLimiter{
		perMin:  perMin,
		clients: make(map[string]*client),
		sweepAt: time.Now().Add(time.Hour),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.sweepAt) {
		for k, c := range l.clients {
			if now.Sub(c.seen) > time.Hour {
				delete(l.clients, k)
			}
		}
		l.sweepAt = now.Add(time.Hour)
	}

	c := l.clients[ip]
	if c == nil {
		c = &client{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.lim.Allow()
}
