package dummydb

import (
	"context"
	"strings"

	"github.com/trezcool/rollcall/core/roster"
)

type rosterRepository struct {
	db *rosterTable
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db.roster}
}

func (repo *rosterRepository) GetSessionState(ctx context.Context) (roster.SessionState, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.state, nil
}

func (repo *rosterRepository) SaveSessionState(ctx context.Context, state roster.SessionState) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.state = state
	return nil
}

func (repo *rosterRepository) ListRoster(ctx context.Context) ([]roster.AttendanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]roster.AttendanceRecord, len(repo.db.records))
	copy(recs, repo.db.records)
	return recs, nil
}

func (repo *rosterRepository) CreateRecord(ctx context.Context, rec roster.AttendanceRecord, sessionToken string, rejectDupIdentity bool) (roster.AttendanceRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// same guard as the sqlite store: a record racing a close/reset must not
	// land in an idle or restarted session
	if !repo.db.state.Active || repo.db.state.SessionToken != sessionToken {
		return roster.AttendanceRecord{}, roster.ErrSessionNotActive
	}

	for _, existing := range repo.db.records {
		if strings.EqualFold(existing.Email, rec.Email) {
			return roster.AttendanceRecord{}, roster.ErrAlreadyRegistered
		}
		if rejectDupIdentity && rec.IdentityToken != "" && existing.IdentityToken == rec.IdentityToken {
			return roster.AttendanceRecord{}, roster.ErrAlreadyRegistered
		}
	}

	repo.db.pkCount++
	rec.ID = repo.db.pkCount
	repo.db.records = append(repo.db.records, rec)
	return rec, nil
}

func (repo *rosterRepository) ClearAll(ctx context.Context, sessionToken string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.state.SessionToken != sessionToken {
		return nil // stale token: a newer activation owns the store
	}
	repo.db.state = roster.SessionState{}
	repo.db.records = nil
	return nil
}
