package roster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/identity"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSessionNotActive     = errors.New("no class session is currently active")
	ErrSessionAlreadyActive = errors.New("a class session is already active")
	ErrAlreadyRegistered    = errors.New("this email or device is already on the roster")
	ErrIdentityUnavailable  = errors.New("client identity has not resolved yet; retry shortly")
)

type (
	// Repository is the durable store for session state and the roster.
	// Implementations must make CreateRecord atomic with respect to email
	// uniqueness: of concurrent inserts sharing an email exactly one may
	// succeed, the rest get ErrAlreadyRegistered. The insert must also
	// verify, in the same transaction, that the session identified by
	// sessionToken is still the active one; a record racing a close/reset
	// gets ErrSessionNotActive instead of landing in an idle store. Store
	// failures surface as distinct errors, never as a false duplicate or
	// false success.
	Repository interface {
		GetSessionState(ctx context.Context) (SessionState, error)
		SaveSessionState(ctx context.Context, state SessionState) error
		ListRoster(ctx context.Context) ([]AttendanceRecord, error)
		CreateRecord(ctx context.Context, rec AttendanceRecord, sessionToken string, rejectDupIdentity bool) (AttendanceRecord, error)
		// ClearAll drops the roster and resets the session row to idle, but
		// only while the stored session token still matches; a stale token is
		// a no-op so a late close cannot wipe a newer activation.
		ClearAll(ctx context.Context, sessionToken string) error
	}

	// Archiver persists a roster snapshot locally; the fallback (and audit
	// trail) for the email export.
	Archiver interface {
		Save(snap Snapshot) (string, error)
	}

	Service struct {
		conf     *core.Config
		repo     Repository
		mailSvc  core.EmailService
		archiver Archiver
		logger   core.Logger
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, archiver Archiver, logger core.Logger) *Service {
	return &Service{
		conf:     conf,
		repo:     repo,
		mailSvc:  mailSvc,
		archiver: archiver,
		logger:   logger,
	}
}

// Start opens a new class session. Only valid while idle: starting twice is
// ErrSessionAlreadyActive, not a second activation. An expired-but-unclosed
// session is finalized first.
func (svc *Service) Start(ctx context.Context, adminIdentity string) (SessionState, error) {
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return SessionState{}, pkgerrors.Wrap(err, "reading session state")
	}

	now := NowFunc().UTC()
	if state.Active {
		if !state.Expired(now) {
			return SessionState{}, ErrSessionAlreadyActive
		}
		if err := svc.finalize(ctx, state); err != nil {
			return SessionState{}, err
		}
	}

	state = SessionState{
		Active:        true,
		StartedAt:     now,
		TimerEndAt:    now.Add(svc.conf.SessionDuration),
		AdminIdentity: adminIdentity,
		SessionToken:  uuid.New().String(),
	}
	if err := svc.repo.SaveSessionState(ctx, state); err != nil {
		return SessionState{}, pkgerrors.Wrap(err, "saving session state")
	}
	return state, nil
}

// IsActive re-reads the durable store on every call; a cached flag is never
// ground truth since another handler may have started or closed the class.
// A lapsed timer reads as inactive even before ExpireIfDue finalizes it.
func (svc *Service) IsActive(ctx context.Context) (bool, error) {
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(err, "reading session state")
	}
	return state.Active && !state.Expired(NowFunc().UTC()), nil
}

// Close ends the session: the roster snapshot goes to the notification sink
// (best effort) and the local archive, then the store resets to idle.
// Closing an idle session is a no-op, so double close converges.
func (svc *Service) Close(ctx context.Context) error {
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "reading session state")
	}
	if !state.Active {
		return nil
	}
	return svc.finalize(ctx, state)
}

// ExpireIfDue performs the Active → Closed transition iff the timer has
// lapsed. Idempotent, and guarded by the session token like Close; invoked by
// the status endpoint each countdown poll so expiry is an auditable server
// action rather than a client-side timer mutating state.
func (svc *Service) ExpireIfDue(ctx context.Context) error {
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "reading session state")
	}
	if !state.Expired(NowFunc().UTC()) {
		return nil
	}
	return svc.finalize(ctx, state)
}

// RemainingTime is a pure display computation; it never mutates state.
func (svc *Service) RemainingTime(ctx context.Context) (time.Duration, error) {
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "reading session state")
	}
	return state.Remaining(NowFunc().UTC()), nil
}

// NeedsReauth reports whether the caller's identity differs from the one that
// opened the session. It only gates whether the UI shows a re-auth prompt for
// administrative actions; students register regardless.
func (svc *Service) NeedsReauth(ctx context.Context, callerIdentity string) (bool, error) {
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(err, "reading session state")
	}
	if !state.Active || state.AdminIdentity == "" {
		return false, nil
	}
	return state.AdminIdentity != callerIdentity, nil
}

// ListRoster returns the current roster in insertion order.
func (svc *Service) ListRoster(ctx context.Context) ([]AttendanceRecord, error) {
	recs, err := svc.repo.ListRoster(ctx)
	return recs, pkgerrors.Wrap(err, "listing roster")
}

// Register is the only path that admits a record to the roster.
func (svc *Service) Register(ctx context.Context, nr NewRegistration, idp identity.Provider) (AttendanceRecord, error) {
	if err := nr.Validate(); err != nil {
		return AttendanceRecord{}, err
	}

	// Resolve the identity signal with a bounded wait. A still-pending token
	// must not be admitted as if it were real data; the caller retries after
	// the client-side lookup settles. "Unavailable" is admissible: the roster
	// entry simply carries no identity hint.
	tok, err := identity.Await(ctx, idp, svc.conf.IdentityWaitTimeout)
	if err != nil {
		return AttendanceRecord{}, pkgerrors.Wrap(err, "resolving identity")
	}
	if tok.Pending() {
		return AttendanceRecord{}, ErrIdentityUnavailable
	}

	// Fresh read; a per-handler cached flag must never drive admission.
	state, err := svc.repo.GetSessionState(ctx)
	if err != nil {
		return AttendanceRecord{}, pkgerrors.Wrap(err, "reading session state")
	}
	if !state.Active || state.Expired(NowFunc().UTC()) {
		return AttendanceRecord{}, ErrSessionNotActive
	}

	rec := AttendanceRecord{
		FullName:      nr.FullName,
		Email:         nr.Email,
		IdentityToken: tok.Value,
		RegisteredAt:  NowFunc().UTC(),
	}
	// The insert re-verifies the session token so a close that slipped in
	// between the read above and the insert refuses the record instead of
	// admitting it into an idle (or restarted) store.
	rec, err = svc.repo.CreateRecord(ctx, rec, state.SessionToken, svc.conf.RejectDuplicateIdentity)
	if err != nil {
		switch pkgerrors.Cause(err) {
		case ErrAlreadyRegistered:
			return AttendanceRecord{}, ErrAlreadyRegistered
		case ErrSessionNotActive:
			return AttendanceRecord{}, ErrSessionNotActive
		}
		return AttendanceRecord{}, pkgerrors.Wrap(err, "creating attendance record")
	}
	return rec, nil
}

// finalize exports the roster and resets the store. Export failures are
// logged and never block the reset; the local archive substitutes for a
// failed email delivery.
func (svc *Service) finalize(ctx context.Context, state SessionState) error {
	recs, err := svc.repo.ListRoster(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "listing roster")
	}
	snap := Snapshot{Records: recs, TakenAt: NowFunc().UTC()}

	if snap.Count() > 0 {
		if path, err := svc.archiver.Save(snap); err != nil {
			svc.logger.Error("archiving roster snapshot", err)
		} else {
			svc.logger.Info("roster snapshot archived to " + path)
		}
		if svc.conf.RosterRecipient != "" {
			svc.mailSvc.SendMessages(NewRosterEmail(svc.conf, snap))
		}
	}

	if err := svc.repo.ClearAll(ctx, state.SessionToken); err != nil {
		return pkgerrors.Wrap(err, "clearing session state")
	}
	return nil
}
