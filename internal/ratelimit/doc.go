// Package ratelimit spaces outbound upstream calls per (endpoint, subject).
//
// A [Limiter] holds one token bucket of burst one per key, so two calls on the same key are always
// at least the key's interval apart. Endpoints are grouped into classes by [Classify]; the
// high-volume class gets the longer interval. When a response signals exhaustion ([Exhausted]),
// [Limiter.Backoff] sleeps for the server's reset hint, or a default window, before the caller retries.
//
// All waiting goes through a [Clock], so tests can substitute a fake and observe spacing without
// sleeping. State is bounded by an LRU of keys and lives only in this process.
package ratelimit
