package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/roster"
)

type (
	dbSessionState struct {
		ID            int          `db:"id"`
		Active        bool         `db:"active"`
		StartedAt     sql.NullTime `db:"started_at"`
		TimerEndAt    sql.NullTime `db:"timer_end_at"`
		AdminIdentity string       `db:"admin_identity"`
		SessionToken  string       `db:"session_token"`
	}

	dbAttendanceRecord struct {
		ID            int       `db:"id"`
		FullName      string    `db:"full_name"`
		Email         string    `db:"email"`
		IdentityToken string    `db:"identity_token"`
		RegisteredAt  time.Time `db:"registered_at"`
	}

	rosterRepository struct {
		db *sqlx.DB
	}
)

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *sqlx.DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (s dbSessionState) toState() roster.SessionState {
	state := roster.SessionState{
		Active:        s.Active,
		AdminIdentity: s.AdminIdentity,
		SessionToken:  s.SessionToken,
	}
	if s.StartedAt.Valid {
		state.StartedAt = s.StartedAt.Time.UTC()
	}
	if s.TimerEndAt.Valid {
		state.TimerEndAt = s.TimerEndAt.Time.UTC()
	}
	return state
}

func (r dbAttendanceRecord) toRecord() roster.AttendanceRecord {
	return roster.AttendanceRecord{
		ID:            r.ID,
		FullName:      r.FullName,
		Email:         r.Email,
		IdentityToken: r.IdentityToken,
		RegisteredAt:  r.RegisteredAt.UTC(),
	}
}

func (repo *rosterRepository) GetSessionState(ctx context.Context) (roster.SessionState, error) {
	var row dbSessionState
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM session_state WHERE id = 1`); err != nil {
		return roster.SessionState{}, errors.Wrap(err, "getting session state")
	}
	return row.toState(), nil
}

func (repo *rosterRepository) SaveSessionState(ctx context.Context, state roster.SessionState) error {
	row := dbSessionState{
		Active:        state.Active,
		AdminIdentity: state.AdminIdentity,
		SessionToken:  state.SessionToken,
	}
	if !state.StartedAt.IsZero() {
		row.StartedAt = sql.NullTime{Time: state.StartedAt.UTC(), Valid: true}
	}
	if !state.TimerEndAt.IsZero() {
		row.TimerEndAt = sql.NullTime{Time: state.TimerEndAt.UTC(), Valid: true}
	}

	_, err := repo.db.NamedExecContext(ctx, `
		UPDATE session_state
		SET active = :active,
		    started_at = :started_at,
		    timer_end_at = :timer_end_at,
		    admin_identity = :admin_identity,
		    session_token = :session_token
		WHERE id = 1`, row)
	return errors.Wrap(err, "saving session state")
}

func (repo *rosterRepository) ListRoster(ctx context.Context) ([]roster.AttendanceRecord, error) {
	var rows []dbAttendanceRecord
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM attendance_record ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "listing roster")
	}

	recs := make([]roster.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.toRecord())
	}
	return recs, nil
}

// CreateRecord inserts a roster entry. The UNIQUE index on email makes the
// uniqueness check atomic at the storage layer; the session-token and
// optional identity checks share the insert's transaction so neither a
// concurrent close nor a second device can race past them.
func (repo *rosterRepository) CreateRecord(ctx context.Context, rec roster.AttendanceRecord, sessionToken string, rejectDupIdentity bool) (roster.AttendanceRecord, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return roster.AttendanceRecord{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	err = tx.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM session_state WHERE id = 1 AND active = 1 AND session_token = ?`, sessionToken)
	if err != nil {
		return roster.AttendanceRecord{}, errors.Wrap(err, "checking session state")
	}
	if active == 0 {
		// the session closed (or was reset and restarted) after the caller's
		// admission check; refuse rather than land in the wrong roster
		return roster.AttendanceRecord{}, roster.ErrSessionNotActive
	}

	if rejectDupIdentity && rec.IdentityToken != "" {
		var n int
		err := tx.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM attendance_record WHERE identity_token = ?`, rec.IdentityToken)
		if err != nil {
			return roster.AttendanceRecord{}, errors.Wrap(err, "checking identity uniqueness")
		}
		if n > 0 {
			return roster.AttendanceRecord{}, roster.ErrAlreadyRegistered
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_record (full_name, email, identity_token, registered_at)
		VALUES (?, ?, ?, ?)`,
		rec.FullName, rec.Email, rec.IdentityToken, rec.RegisteredAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return roster.AttendanceRecord{}, roster.ErrAlreadyRegistered
		}
		return roster.AttendanceRecord{}, errors.Wrap(err, "inserting attendance record")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return roster.AttendanceRecord{}, errors.Wrap(err, "reading inserted id")
	}
	if err := tx.Commit(); err != nil {
		return roster.AttendanceRecord{}, errors.Wrap(err, "committing attendance record")
	}

	rec.ID = int(id)
	return rec, nil
}

func (repo *rosterRepository) ClearAll(ctx context.Context, sessionToken string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE session_state
		SET active = 0, started_at = NULL, timer_end_at = NULL, admin_identity = '', session_token = ''
		WHERE id = 1 AND session_token = ?`, sessionToken)
	if err != nil {
		return errors.Wrap(err, "resetting session state")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		// stale token: another actor already reset (and possibly restarted)
		// the session; do not touch their roster
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_record`); err != nil {
		return errors.Wrap(err, "clearing roster")
	}
	return errors.Wrap(tx.Commit(), "committing session reset")
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
