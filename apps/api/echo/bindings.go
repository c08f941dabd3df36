package echoapi

import (
	"time"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

type (
	AdminActionRequest struct {
		Password       string `json:"password" validate:"required"`
		Answer         int    `json:"answer"`
		ChallengeToken string `json:"challenge_token" validate:"required"`
		IdentityToken  string `json:"identity_token"`
	}

	SessionStatusResponse struct {
		Active           bool   `json:"active"`
		RemainingSeconds int    `json:"remaining_seconds"`
		RosterCount      int    `json:"roster_count"`
		NeedsReauth      bool   `json:"needs_reauth"`
		ServerTime       string `json:"server_time"`
	}

	SessionStateResponse struct {
		Active     bool      `json:"active"`
		StartedAt  time.Time `json:"started_at"`
		TimerEndAt time.Time `json:"timer_end_at"`
	}

	RegisterResponse struct {
		FullName     string `json:"full_name"`
		Email        string `json:"email"`
		RegisteredAt string `json:"registered_at"`
	}

	RosterEntry struct {
		FullName     string `json:"full_name"`
		RegisteredAt string `json:"registered_at"`
	}

	RosterResponse struct {
		Count   int           `json:"count"`
		Entries []RosterEntry `json:"entries"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (r *AdminActionRequest) Validate() error {
	r.Password = core.CleanString(r.Password)
	r.ChallengeToken = core.CleanString(r.ChallengeToken)
	return core.Validate.Struct(r)
}

func newSessionStateResponse(state roster.SessionState) SessionStateResponse {
	return SessionStateResponse{
		Active:     state.Active,
		StartedAt:  state.StartedAt,
		TimerEndAt: state.TimerEndAt,
	}
}

func newRegisterResponse(rec roster.AttendanceRecord, loc *time.Location) RegisterResponse {
	return RegisterResponse{
		FullName:     rec.FullName,
		Email:        rec.Email,
		RegisteredAt: rec.RegisteredAt.In(loc).Format("02/01/2006 15:04:05"),
	}
}
