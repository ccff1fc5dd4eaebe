package auth

import (
	"sync"
	"time"
)

// FailureLimiter blocks clients that present too many invalid tokens
type FailureLimiter struct {
	mu       sync.Mutex
	attempts map[string]*ipAttempts
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once

	maxFailures int           // Failures before blocking
	window      time.Duration // Time window for counting failures
	blockTime   time.Duration // How long to block after max failures
}

type ipAttempts struct {
	count     int
	firstTime time.Time
	blockEnd  time.Time
}

// NewFailureLimiter creates a limiter: 5 failures per 2 minutes block the
// address for 5 minutes
func NewFailureLimiter() *FailureLimiter {
	rl := newFailureLimiter(time.Now)
	go rl.cleanupLoop()
	return rl
}

func newFailureLimiter(now func() time.Time) *FailureLimiter {
	return &FailureLimiter{
		attempts:    make(map[string]*ipAttempts),
		now:         now,
		stop:        make(chan struct{}),
		maxFailures: 5,
		window:      2 * time.Minute,
		blockTime:   5 * time.Minute,
	}
}

// Blocked reports whether ip is blocked and for how many more seconds
func (rl *FailureLimiter) Blocked(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	att, ok := rl.attempts[ip]
	if !ok || att.blockEnd.IsZero() {
		return false, 0
	}
	now := rl.now()
	if !now.Before(att.blockEnd) {
		delete(rl.attempts, ip)
		return false, 0
	}
	return true, int(att.blockEnd.Sub(now).Seconds()) + 1
}

// RecordFailure counts an invalid attempt from ip
func (rl *FailureLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	att, ok := rl.attempts[ip]
	if !ok || now.Sub(att.firstTime) > rl.window {
		rl.attempts[ip] = &ipAttempts{count: 1, firstTime: now}
		return
	}

	att.count++
	if att.count >= rl.maxFailures {
		att.blockEnd = now.Add(rl.blockTime)
	}
}

// Reset clears the record for ip
func (rl *FailureLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// Stop ends the cleanup goroutine
func (rl *FailureLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *FailureLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes expired entries
func (rl *FailureLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, att := range rl.attempts {
		if att.blockEnd.IsZero() && now.Sub(att.firstTime) > rl.window {
			delete(rl.attempts, ip)
		} else if !att.blockEnd.IsZero() && !now.Before(att.blockEnd) {
			delete(rl.attempts, ip)
		}
	}
}
