package echoapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/gate"
	"github.com/trezcool/rollcall/core/identity"
	"github.com/trezcool/rollcall/core/roster"
)

type rosterApi struct {
	svc  *roster.Service
	gate *gate.Service
	conf *core.Config
}

func registerRosterAPI(g *echo.Group, svc *roster.Service, gateSvc *gate.Service, conf *core.Config) {
	api := rosterApi{
		svc:  svc,
		gate: gateSvc,
		conf: conf,
	}

	sg := g.Group("/session")
	sg.GET("", api.status)
	sg.GET("/challenge", api.challenge)
	sg.POST("/start", api.start)
	sg.POST("/close", api.close)

	g.POST("/attendance", api.register)
	g.GET("/attendance", api.listRoster)
}

// Handlers

// status drives the countdown and the re-auth prompt; it is polled by every
// open page, which is also what makes timer expiry take effect server-side.
func (api *rosterApi) status(ctx echo.Context) error {
	c := ctx.Request().Context()

	if err := api.svc.ExpireIfDue(c); err != nil {
		return errors.Wrap(err, "expiring session")
	}

	active, err := api.svc.IsActive(c)
	if err != nil {
		return errors.Wrap(err, "checking session state")
	}
	remaining, err := api.svc.RemainingTime(c)
	if err != nil {
		return errors.Wrap(err, "computing remaining time")
	}
	recs, err := api.svc.ListRoster(c)
	if err != nil {
		return errors.Wrap(err, "listing roster")
	}

	var needsReauth bool
	if tok := identity.Parse(ctx.QueryParam("identity_token")); tok.Resolved() {
		if needsReauth, err = api.svc.NeedsReauth(c, tok.Value); err != nil {
			return errors.Wrap(err, "checking admin identity")
		}
	}

	return ctx.JSON(http.StatusOK, SessionStatusResponse{
		Active:           active,
		RemainingSeconds: int(remaining / time.Second),
		RosterCount:      len(recs),
		NeedsReauth:      needsReauth,
		ServerTime:       time.Now().In(api.conf.Location()).Format("02/01/2006 15:04:05"),
	})
}

func (api *rosterApi) challenge(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.gate.IssueChallenge())
}

func (api *rosterApi) start(ctx echo.Context) error {
	var data AdminActionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminActionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if !api.gate.Verify(data.Password, data.Answer, data.ChallengeToken) {
		return errHttpForbidden
	}

	// the opener's identity is advisory; it may legitimately be unresolved
	adminIdentity := identity.Parse(data.IdentityToken).Value

	state, err := api.svc.Start(ctx.Request().Context(), adminIdentity)
	if err != nil {
		if errors.Cause(err) == roster.ErrSessionAlreadyActive {
			return err
		}
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusCreated, newSessionStateResponse(state))
}

func (api *rosterApi) close(ctx echo.Context) error {
	var data AdminActionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminActionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if !api.gate.Verify(data.Password, data.Answer, data.ChallengeToken) {
		return errHttpForbidden
	}

	if err := api.svc.Close(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "closing session")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "Attendance list finalized; the roster has been exported.",
	})
}

func (api *rosterApi) register(ctx echo.Context) error {
	var data roster.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistration")
	}

	rec, err := api.svc.Register(ctx.Request().Context(), data, identity.Static(data.IdentityToken))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newRegisterResponse(rec, api.conf.Location()))
}

// listRoster feeds the "students present" side panel: names only, sorted,
// no emails or identity tokens exposed to other attendees.
func (api *rosterApi) listRoster(ctx echo.Context) error {
	recs, err := api.svc.ListRoster(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing roster")
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].FullName < recs[j].FullName })

	loc := api.conf.Location()
	entries := make([]RosterEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, RosterEntry{
			FullName:     rec.FullName,
			RegisteredAt: rec.RegisteredAt.In(loc).Format("02/01/2006 15:04:05"),
		})
	}
	return ctx.JSON(http.StatusOK, RosterResponse{Count: len(entries), Entries: entries})
}
