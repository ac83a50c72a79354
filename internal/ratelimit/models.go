// Package ratelimit bounds admission attempts per browsing session.
//
// The limiter is session-scoped and best-effort: it deters duplicate-click
// storms and scripted abuse, but it is not an athlete- or IP-authoritative
// security boundary, and it must stay that way unless explicitly redesigned.
package ratelimit

import (
	"strings"
	"time"
)

// Result reports one rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up to whole seconds for client display.
func (r Result) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	return int((r.RetryAfter + time.Second - 1) / time.Second)
}

// SanitizeKeySegment escapes delimiter characters in limiter key segments so
// a client-supplied session ID containing ':' cannot collide with adjacent
// buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
