// Package notification hands confirmed registrations to the external
// notification collaborator. Sending is post-commit and fire-and-forget: a
// delivery failure is logged, never rolled back into the registration.
package notification

import (
	"context"
	"log/slog"
)

// Confirmation is the payload exposed to the notification collaborator.
type Confirmation struct {
	AthleteFirstName string
	AthleteLastName  string
	AthleteEmail     string
	RaceName         string
	EventName        string
	BibNumber        string
	ManagementCode   string
	AmountCents      int64
	OrganizerName    string
	OrganizerEmail   string
}

// Sender delivers a confirmation. Implementations are stateless; the
// transport is injected, not a process-wide singleton.
type Sender interface {
	SendConfirmation(ctx context.Context, confirmation Confirmation) error
}

// LogSender is the default transport when no delivery channel is
// configured: it records the confirmation and does nothing else.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	s.logger.InfoContext(ctx, "registration confirmation",
		"athlete", c.AthleteFirstName+" "+c.AthleteLastName,
		"race", c.RaceName,
		"management_code", c.ManagementCode,
		"amount_cents", c.AmountCents,
	)
	return nil
}
