// Package ratelimit caps how often the monitor fires searches against
// the platform. Keeping request rates under a budget matters more here
// than throughput: bursts are a detection signal and get accounts
// flagged.
//
// Available implementations:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Suitable for burst traffic followed by quiet periods
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - More accurate rate limiting over time
//   - Used by the orchestrator for the per-hour search budget
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - check if a request is allowed
//   - Wait(ctx) error - block until a request is allowed or ctx ends
//   - Reset() - reset the limiter state
package ratelimit
