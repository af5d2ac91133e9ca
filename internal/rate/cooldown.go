package rate

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two accepted reports from the
// same member.
const DefaultCooldown = 120 * time.Second

// Cooldown remembers when each key last passed Allow. State lives in memory
// only; a restart clears every cooldown.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	lastGC time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{window: window, last: map[string]time.Time{}}
}

func (c *Cooldown) Window() time.Duration {
	return c.window
}

// Allow reports whether key may act at now. An allowed call records now as
// the key's last accepted time; a refused call returns how long key must
// still wait, computed under the same lock.
func (c *Cooldown) Allow(key string, now time.Time) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastGC) > time.Minute {
		for k, t := range c.last {
			if now.Sub(t) >= c.window {
				delete(c.last, k)
			}
		}
		c.lastGC = now
	}

	if last, ok := c.last[key]; ok {
		if left := c.window - now.Sub(last); left > 0 {
			return false, left
		}
	}
	c.last[key] = now
	return true, 0
}
