package scheduler

import "time"

// tokenBucket paces dial admissions for one campaign. Capacity equals
// the campaign's calls_per_minute and tokens refill continuously at
// capacity/60 per second. The bucket starts full, so a freshly started
// campaign can burst up to one minute's allowance.
type tokenBucket struct {
	capacity float64
	tokens   float64
	last     time.Time
}

func newTokenBucket(perMinute int, now time.Time) *tokenBucket {
	c := float64(perMinute)
	return &tokenBucket{capacity: c, tokens: c, last: now}
}

// resize applies a changed per-minute rate. No free refill: accumulated
// tokens only ever get clamped down to the new capacity.
func (b *tokenBucket) resize(perMinute int) {
	c := float64(perMinute)
	if c == b.capacity {
		return
	}
	b.capacity = c
	if b.tokens > c {
		b.tokens = c
	}
}

func (b *tokenBucket) refillAt(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.capacity / 60
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// available reports how many whole admissions the bucket can grant.
func (b *tokenBucket) available(now time.Time) int {
	b.refillAt(now)
	return int(b.tokens)
}

func (b *tokenBucket) take(now time.Time) bool {
	b.refillAt(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// refund returns a token that was taken but never spent on a dial.
func (b *tokenBucket) refund() {
	b.tokens++
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}
