package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

const testSessionToken = "tok-current"

func prepareDB(t *testing.T) *sqlx.DB {
	conf := &core.Config{}
	conf.Database.Path = filepath.Join(t.TempDir(), "rollcall_test.db")

	db, err := Open(conf)
	if err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	return db
}

// prepareActiveRepo returns a repository with a running session, the state
// records are inserted under.
func prepareActiveRepo(t *testing.T) roster.Repository {
	repo := NewRosterRepository(prepareDB(t))

	now := time.Now().UTC()
	state := roster.SessionState{
		Active:       true,
		StartedAt:    now,
		TimerEndAt:   now.Add(time.Hour),
		SessionToken: testSessionToken,
	}
	if err := repo.SaveSessionState(context.Background(), state); err != nil {
		t.Fatalf("prepareActiveRepo() failed: %v", err)
	}
	return repo
}

func newRecord(name, email, identityToken string) roster.AttendanceRecord {
	return roster.AttendanceRecord{
		FullName:      name,
		Email:         email,
		IdentityToken: identityToken,
		RegisteredAt:  time.Now().UTC(),
	}
}

func TestSessionStateRoundTrip(t *testing.T) {
	repo := NewRosterRepository(prepareDB(t))
	ctx := context.Background()

	// migration seeds an idle singleton row
	state, err := repo.GetSessionState(ctx)
	assert.NoError(t, err)
	assert.False(t, state.Active)
	assert.True(t, state.StartedAt.IsZero())
	assert.True(t, state.TimerEndAt.IsZero())

	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	want := roster.SessionState{
		Active:        true,
		StartedAt:     now,
		TimerEndAt:    now.Add(time.Hour),
		AdminIdentity: "1.2.3.4",
		SessionToken:  "tok-1",
	}
	assert.NoError(t, repo.SaveSessionState(ctx, want))

	got, err := repo.GetSessionState(ctx)
	assert.NoError(t, err)
	assert.Equal(t, want.Active, got.Active)
	assert.True(t, got.StartedAt.Equal(want.StartedAt))
	assert.True(t, got.TimerEndAt.Equal(want.TimerEndAt))
	assert.Equal(t, want.AdminIdentity, got.AdminIdentity)
	assert.Equal(t, want.SessionToken, got.SessionToken)
}

func TestCreateRecordUniqueEmail(t *testing.T) {
	repo := prepareActiveRepo(t)
	ctx := context.Background()

	rec, err := repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", "9.9.9.9"), testSessionToken, false)
	assert.NoError(t, err)
	assert.NotZero(t, rec.ID)

	_, err = repo.CreateRecord(ctx, newRecord("Ana2", "ana@x.com", "8.8.8.8"), testSessionToken, false)
	assert.ErrorIs(t, err, roster.ErrAlreadyRegistered)

	// the NOCASE index catches case variants that skipped normalization
	_, err = repo.CreateRecord(ctx, newRecord("Ana3", "ANA@X.com", "7.7.7.7"), testSessionToken, false)
	assert.ErrorIs(t, err, roster.ErrAlreadyRegistered)
}

func TestCreateRecordRequiresActiveSession(t *testing.T) {
	repo := NewRosterRepository(prepareDB(t))
	ctx := context.Background()

	// idle store: no insert, whatever the token
	_, err := repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", ""), "", false)
	assert.ErrorIs(t, err, roster.ErrSessionNotActive)
	_, err = repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", ""), testSessionToken, false)
	assert.ErrorIs(t, err, roster.ErrSessionNotActive)

	now := time.Now().UTC()
	assert.NoError(t, repo.SaveSessionState(ctx, roster.SessionState{
		Active:       true,
		StartedAt:    now,
		TimerEndAt:   now.Add(time.Hour),
		SessionToken: testSessionToken,
	}))

	// a stale token is a record aimed at a session that no longer exists
	_, err = repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", ""), "tok-previous", false)
	assert.ErrorIs(t, err, roster.ErrSessionNotActive)

	_, err = repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", ""), testSessionToken, false)
	assert.NoError(t, err)
}

func TestCreateRecordDuplicateIdentityPolicy(t *testing.T) {
	repo := prepareActiveRepo(t)
	ctx := context.Background()

	_, err := repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", "9.9.9.9"), testSessionToken, true)
	assert.NoError(t, err)

	// same device, different email: refused only when the policy is on
	_, err = repo.CreateRecord(ctx, newRecord("Ana2", "ana2@x.com", "9.9.9.9"), testSessionToken, true)
	assert.ErrorIs(t, err, roster.ErrAlreadyRegistered)

	_, err = repo.CreateRecord(ctx, newRecord("Bea", "bea@x.com", "9.9.9.9"), testSessionToken, false)
	assert.NoError(t, err)

	// records without an identity hint never collide
	_, err = repo.CreateRecord(ctx, newRecord("Cia", "cia@x.com", ""), testSessionToken, true)
	assert.NoError(t, err)
	_, err = repo.CreateRecord(ctx, newRecord("Dea", "dea@x.com", ""), testSessionToken, true)
	assert.NoError(t, err)
}

func TestCreateRecordConcurrentSameEmail(t *testing.T) {
	repo := prepareActiveRepo(t)
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", "9.9.9.9"), testSessionToken, false)
		}(i)
	}
	wg.Wait()

	var admitted int
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, roster.ErrAlreadyRegistered)
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestListRosterInsertionOrder(t *testing.T) {
	repo := prepareActiveRepo(t)
	ctx := context.Background()

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		_, err := repo.CreateRecord(ctx, newRecord("N", email, ""), testSessionToken, false)
		assert.NoError(t, err)
	}

	recs, err := repo.ListRoster(ctx)
	assert.NoError(t, err)
	if assert.Len(t, recs, 3) {
		assert.Equal(t, "c@x.com", recs[0].Email)
		assert.Equal(t, "a@x.com", recs[1].Email)
		assert.Equal(t, "b@x.com", recs[2].Email)
	}
}

func TestClearAllTokenGuard(t *testing.T) {
	repo := prepareActiveRepo(t)
	ctx := context.Background()

	_, err := repo.CreateRecord(ctx, newRecord("Ana", "ana@x.com", ""), testSessionToken, false)
	assert.NoError(t, err)

	// stale token: a late close must not wipe the newer activation
	assert.NoError(t, repo.ClearAll(ctx, "tok-stale"))
	got, err := repo.GetSessionState(ctx)
	assert.NoError(t, err)
	assert.True(t, got.Active)
	recs, err := repo.ListRoster(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, 1)

	// matching token resets everything
	assert.NoError(t, repo.ClearAll(ctx, testSessionToken))
	got, err = repo.GetSessionState(ctx)
	assert.NoError(t, err)
	assert.False(t, got.Active)
	assert.Empty(t, got.SessionToken)
	recs, err = repo.ListRoster(ctx)
	assert.NoError(t, err)
	assert.Empty(t, recs)
}
