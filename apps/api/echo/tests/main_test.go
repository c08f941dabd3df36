package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	echoapi "github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/gate"
	"github.com/trezcool/rollcall/core/roster"
	"github.com/trezcool/rollcall/services/archive"
	emailsvc "github.com/trezcool/rollcall/services/email"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
	testutil "github.com/trezcool/rollcall/tests"
)

const adminPassword = "professor@aws"

type testApp struct {
	app  echoapi.Server
	svc  *roster.Service
	conf *core.Config
}

// newApp wires a full server on the in-memory repository; each test gets a
// fresh one so session state never leaks across tests.
func newApp(t *testing.T) testApp {
	conf := testutil.NewConfig(t)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	conf.AdminPasswordHash = string(hash)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	repo := dummydb.NewRosterRepository(db)

	emailsvc.ClearSentMessages()
	logger := core.NewStdLogger(log.New(io.Discard, "", 0))
	svc := roster.NewService(conf, repo, emailsvc.NewConsoleServiceMock(conf), archive.NewSaver(conf), logger)

	app := echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		Conf:           conf,
		RosterSvc:      svc,
		GateSvc:        gate.NewService(conf),
		Logger:         logger,
	})
	return testApp{app: app, svc: svc, conf: conf}
}

type httpErr struct {
	Error string `json:"error"`
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decodeBody(): %v; body = %s", err, rec.Body.String())
	}
}

// solveChallenge fetches a fresh arithmetic challenge and works out the
// expected answer from the question text.
func solveChallenge(t *testing.T, app http.Handler) (answer int, token string) {
	req, rec := newRequest(http.MethodGet, "/v1/session/challenge")
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("solveChallenge(): code = %v; body = %s", rec.Code, rec.Body.String())
	}

	var ch gate.Challenge
	decodeBody(t, rec, &ch)

	var a, b int
	if _, err := fmt.Sscanf(ch.Question, "What is %d + %d?", &a, &b); err != nil {
		t.Fatalf("solveChallenge(): unparseable question %q: %v", ch.Question, err)
	}
	return a + b, ch.Token
}

func adminBody(t *testing.T, app http.Handler, password, identityToken string) []byte {
	answer, token := solveChallenge(t, app)
	return marshallObj(t, echoapi.AdminActionRequest{
		Password:       password,
		Answer:         answer,
		ChallengeToken: token,
		IdentityToken:  identityToken,
	})
}

func startSession(t *testing.T, ta testApp, identityToken string) {
	req, rec := newRequest(http.MethodPost, "/v1/session/start", adminBody(t, ta.app, adminPassword, identityToken))
	ta.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("startSession(): code = %v; body = %s", rec.Code, rec.Body.String())
	}
}

func registerStudent(t *testing.T, ta testApp, name, email, identityToken string) *httptest.ResponseRecorder {
	body := marshallObj(t, roster.NewRegistration{FullName: name, Email: email, IdentityToken: identityToken})
	req, rec := newRequest(http.MethodPost, "/v1/attendance", body)
	ta.app.ServeHTTP(rec, req)
	return rec
}
