package server

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// LimitReason identifies which admission limit rejected a connection.
type LimitReason string

const (
	LimitReasonNone   LimitReason = ""
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits enforces the three admission limits: a global cap on
// concurrent connections, a per-IP cap, and a token-bucket rate on new
// admissions. Acquire must be paired with Release for every true return.
type ConnectionLimits struct {
	maxGlobal int64
	current   atomic.Int64

	maxPerIP int
	mu       sync.Mutex
	perIP    map[string]int

	rate *rate.Limiter
}

func NewConnectionLimits(maxGlobal int64, maxPerIP int, perSec float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		maxGlobal: maxGlobal,
		maxPerIP:  maxPerIP,
		perIP:     make(map[string]int),
		rate:      rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Acquire reserves a connection slot for the given IP. On success the caller
// owns the slot until Release.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.Allow() {
		return false, LimitReasonRate
	}

	if l.current.Add(1) > l.maxGlobal {
		l.current.Add(-1)
		return false, LimitReasonGlobal
	}

	l.mu.Lock()
	if l.perIP[ip] >= l.maxPerIP {
		l.mu.Unlock()
		l.current.Add(-1)
		return false, LimitReasonPerIP
	}
	l.perIP[ip]++
	l.mu.Unlock()

	return true, LimitReasonNone
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if n := l.perIP[ip]; n <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = n - 1
	}
	l.mu.Unlock()

	l.current.Add(-1)
}

// Active reports the number of held connection slots.
func (l *ConnectionLimits) Active() int64 {
	return l.current.Load()
}
