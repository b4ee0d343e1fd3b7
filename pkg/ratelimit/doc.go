// Package ratelimit provides per-IP token-bucket rate limiting middleware for
// the back-office API, with automatic stale-entry cleanup.
package ratelimit
