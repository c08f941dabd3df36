package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

// NewConfig returns a Config suitable for tests: short identity wait, roster
// archived to a throwaway dir, UTC display times.
func NewConfig(t *testing.T) *core.Config {
	conf := &core.Config{
		AppName:             "Rollcall",
		Env:                 "TEST",
		TestMode:            true,
		SecretKey:           []byte("secret"),
		DefaultFromName:     "Rollcall",
		DefaultFromAddr:     "noreply@test.test",
		RosterRecipient:     "professor@test.test",
		ArchiveDir:          t.TempDir(),
		DisplayTimezone:     "UTC",
		SessionDuration:     time.Hour,
		IdentityWaitTimeout: 50 * time.Millisecond,
	}
	return conf
}

// CreateRecord inserts a roster entry directly through the repository,
// activating a session first if none is running (inserts are refused
// against an idle store).
func CreateRecord(t *testing.T, repo roster.Repository, name, email, identityToken string) roster.AttendanceRecord {
	ctx := context.Background()

	state, err := repo.GetSessionState(ctx)
	if err != nil {
		t.Fatalf("GetSessionState() failed: %v", err)
	}
	if !state.Active {
		now := time.Now().UTC()
		state = roster.SessionState{
			Active:       true,
			StartedAt:    now,
			TimerEndAt:   now.Add(time.Hour),
			SessionToken: "test-session",
		}
		if err := repo.SaveSessionState(ctx, state); err != nil {
			t.Fatalf("SaveSessionState() failed: %v", err)
		}
	}

	rec, err := repo.CreateRecord(ctx, roster.AttendanceRecord{
		FullName:      name,
		Email:         email,
		IdentityToken: identityToken,
		RegisteredAt:  time.Now().UTC(),
	}, state.SessionToken, false)
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}
