// Package attemptlog records every admission attempt for audit and abuse
// analysis. Writes are append-only and best-effort: a logging failure never
// blocks or fails the registration itself.
package attemptlog

import "time"

// Status is the terminal outcome of an admission attempt.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusRateLimited       Status = "rate_limited"
	StatusQuotaExceeded     Status = "quota_exceeded"
	StatusAlreadyRegistered Status = "already_registered"
	StatusFailed            Status = "failed"
)

// Attempt is one admission attempt. Immutable once written.
type Attempt struct {
	ID        string
	SessionID string
	RaceID    string
	Status    Status
	ErrorCode string
	LatencyMs int64
	CreatedAt time.Time
}
