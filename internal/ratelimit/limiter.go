package ratelimit

import (
	"container/list"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/respect/internal/shared"
)

const (
	defaultHighVolumeInterval = 500 * time.Millisecond
	defaultGeneralInterval    = 200 * time.Millisecond
	defaultMaxEntries         = 1000
	defaultWindow             = 30 * time.Second
)

// Options configures a [Limiter]. Zero values fall back to defaults.
type Options struct {
	HighVolumeInterval time.Duration
	GeneralInterval    time.Duration
	MaxEntries         int
	DefaultWindow      time.Duration
}

// OptionsFromConfig converts the [sync.rate_limit] config section.
func OptionsFromConfig(c shared.RateLimitConfig) Options {
	return Options{
		HighVolumeInterval: time.Duration(c.HighVolumeIntervalMs) * time.Millisecond,
		GeneralInterval:    time.Duration(c.GeneralIntervalMs) * time.Millisecond,
		MaxEntries:         c.MaxEntries,
		DefaultWindow:      time.Duration(c.DefaultWindowSeconds) * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.HighVolumeInterval <= 0 {
		o.HighVolumeInterval = defaultHighVolumeInterval
	}
	if o.GeneralInterval <= 0 {
		o.GeneralInterval = defaultGeneralInterval
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = defaultMaxEntries
	}
	if o.DefaultWindow <= 0 {
		o.DefaultWindow = defaultWindow
	}
	return o
}

// Interval returns the minimum spacing for class.
func (o Options) Interval(class Class) time.Duration {
	if class == HighVolume {
		return max(o.HighVolumeInterval, o.GeneralInterval)
	}
	return o.GeneralInterval
}

type entry struct {
	key     string
	limiter *rate.Limiter
}

// Limiter enforces per (endpoint, subject) spacing. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	opts    Options
	clock   Clock
	entries map[string]*list.Element
	order   *list.List // front is most recently used
}

// New creates a Limiter. A nil clock uses [SystemClock].
func New(opts Options, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Limiter{
		opts:    opts.withDefaults(),
		clock:   clock,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Acquire blocks until a call to endpoint on behalf of subject may proceed.
func (l *Limiter) Acquire(ctx context.Context, endpoint, subject string) error {
	l.mu.Lock()
	now := l.clock.Now()
	r := l.limiterFor(endpoint, subject).ReserveN(now, 1)
	l.mu.Unlock()

	if !r.OK() {
		return fmt.Errorf("%w: reservation refused for %s", shared.ErrRateLimited, endpoint)
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	if err := l.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(l.clock.Now())
		return fmt.Errorf("rate limit wait interrupted: %w", err)
	}
	return nil
}

// Backoff handles a response that exhausted the upstream limit.
//
// It sleeps for [WaitFor] and then resets the key, so the next Acquire is measured from the end of
// the wait. The slept duration is returned.
func (l *Limiter) Backoff(ctx context.Context, endpoint, subject string, resp *http.Response) (time.Duration, error) {
	wait := WaitFor(resp, l.clock.Now(), l.opts.DefaultWindow)

	if err := l.clock.Sleep(ctx, wait); err != nil {
		return 0, fmt.Errorf("rate limit backoff interrupted: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.entries[keyFor(endpoint, subject)]; ok {
		l.order.Remove(el)
		delete(l.entries, el.Value.(*entry).key)
	}
	return wait, nil
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// limiterFor returns the bucket for a key, creating it and evicting the least recently used
// key when full. Callers hold l.mu.
func (l *Limiter) limiterFor(endpoint, subject string) *rate.Limiter {
	key := keyFor(endpoint, subject)
	if el, ok := l.entries[key]; ok {
		l.order.MoveToFront(el)
		return el.Value.(*entry).limiter
	}

	for l.order.Len() >= l.opts.MaxEntries {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.entries, oldest.Value.(*entry).key)
	}

	interval := l.opts.Interval(Classify(endpoint))
	e := &entry{key: key, limiter: rate.NewLimiter(rate.Every(interval), 1)}
	l.entries[key] = l.order.PushFront(e)
	return e.limiter
}

func keyFor(endpoint, subject string) string {
	return EndpointKey(endpoint) + "|" + subject
}

// Exhausted reports whether resp signals that the upstream limit is spent.
func Exhausted(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// WaitFor computes how long to back off after resp.
//
// Retry-After (delta seconds or an HTTP date) wins, then X-RateLimit-Reset (unix seconds). Without
// a usable hint the fallback window is returned. Hints in the past yield zero.
func WaitFor(resp *http.Response, now time.Time, fallback time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
		if when, err := http.ParseTime(v); err == nil {
			return max(when.Sub(now), 0)
		}
	}

	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			return max(time.Unix(unix, 0).Sub(now), 0)
		}
	}

	return fallback
}
