package session

import (
	"fmt"
	"time"

	"github.com/codefulcrum/senseai/core"
)

// Policy bounds how long and how much a conversation may be used.
type Policy struct {
	TTL         time.Duration
	MaxMessages int
}

// DefaultPolicy returns a one hour, twenty message policy.
func DefaultPolicy() Policy {
	return Policy{TTL: time.Hour, MaxMessages: 20}
}

// Validate checks that both limits are positive.
func (p Policy) Validate() error {
	if p.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidPolicy)
	}
	if p.MaxMessages <= 0 {
		return fmt.Errorf("%w: max messages must be positive", ErrInvalidPolicy)
	}
	return nil
}

// TimeLimitMessage is the terminal reply for an expired session.
func (p Policy) TimeLimitMessage() string {
	return fmt.Sprintf("Session has ended due to time limit (%s)", humanDuration(p.TTL))
}

// MessageLimitMessage is the terminal reply for an exhausted session.
func (p Policy) MessageLimitMessage() string {
	return fmt.Sprintf("Session has ended due to message limit (%d messages)", p.MaxMessages)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Expired reports whether now is more than TTL past the record's creation.
func (p Policy) Expired(rec *core.SessionRecord, now time.Time) bool {
	return now.Sub(rec.CreatedAt) > p.TTL
}

// Exhausted reports whether the record has used every allowed message.
func (p Policy) Exhausted(rec *core.SessionRecord) bool {
	return rec.MessageCount >= p.MaxMessages
}

// MessagesRemaining is the number of turns left, never below zero.
func (p Policy) MessagesRemaining(rec *core.SessionRecord) int {
	return max(0, p.MaxMessages-rec.MessageCount)
}

// ExpiresIn is the time left before expiry, never below zero.
func (p Policy) ExpiresIn(rec *core.SessionRecord, now time.Time) time.Duration {
	return max(0, p.TTL-now.Sub(rec.CreatedAt))
}
