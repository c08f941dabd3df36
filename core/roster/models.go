package roster

import (
	"time"

	"github.com/trezcool/rollcall/core"
)

// SessionState is the singleton record describing whether a class session is
// currently collecting attendance. The durable store owns the authoritative
// copy; in-memory values are display caches only and never drive admission.
type SessionState struct {
	Active     bool      `json:"active"`
	StartedAt  time.Time `json:"started_at"`
	TimerEndAt time.Time `json:"timer_end_at"`

	// AdminIdentity is the identity token of whoever opened the session.
	// Advisory only: it decides whether to show a re-auth prompt, it is not
	// a security boundary.
	AdminIdentity string `json:"admin_identity"`

	// SessionToken distinguishes one activation from the next and guards
	// stale close/expire writes.
	SessionToken string `json:"session_token"`
}

// Remaining returns the countdown left at `now`; 0 means expired.
func (s SessionState) Remaining(now time.Time) time.Duration {
	if !s.Active || s.TimerEndAt.IsZero() {
		return 0
	}
	if rem := s.TimerEndAt.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

// Expired reports whether the session timer has lapsed.
func (s SessionState) Expired(now time.Time) bool {
	return s.Active && !s.TimerEndAt.IsZero() && !now.Before(s.TimerEndAt)
}

// AttendanceRecord is one admitted check-in. Records are immutable once
// created and only leave the roster when the whole session is reset.
type AttendanceRecord struct {
	ID            int       `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"` // stored normalized (trimmed, lowered)
	IdentityToken string    `json:"identity_token"`
	RegisteredAt  time.Time `json:"registered_at"` // UTC
}

// NewRegistration contains information needed to attempt a check-in.
type NewRegistration struct {
	FullName      string `json:"full_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	IdentityToken string `json:"identity_token"`
}

func (nr *NewRegistration) Validate() error {
	nr.FullName = core.CleanString(nr.FullName)
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	return core.Validate.Struct(nr)
}

// Snapshot is a point-in-time copy of the roster handed to the notification
// sink and the local archive when a session closes.
type Snapshot struct {
	Records []AttendanceRecord
	TakenAt time.Time // UTC
}

func (s Snapshot) Count() int { return len(s.Records) }
