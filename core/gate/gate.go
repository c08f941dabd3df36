// Package gate implements the session-administration gate: a shared
// professor password plus a freshly generated arithmetic challenge.
// This is an anti-bot speed bump, not a security control; do not build
// access-control assumptions on top of it.
package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/rollcall/core"
)

var (
	salt    = []byte("rollcall.core.gate.challenge")
	NowFunc = time.Now // mockable

	// errors
	errInvalidChallenge = errors.New("invalid challenge")
	errChallengeExpired = errors.New("challenge expired")
)

// Challenge is handed to the authentication UI; Token is a stateless,
// HMAC-signed encoding of the expected answer and issue time, so the server
// keeps no per-challenge state.
type Challenge struct {
	Question string `json:"question"`
	Token    string `json:"token"`
}

type Service struct {
	secretKey    []byte
	passwordHash []byte
	maxAge       time.Duration
}

func NewService(conf *core.Config) *Service {
	return &Service{
		secretKey:    conf.SecretKey,
		passwordHash: []byte(conf.AdminPasswordHash),
		maxAge:       5 * time.Minute,
	}
}

// IssueChallenge generates a fresh arithmetic challenge.
func (svc *Service) IssueChallenge() Challenge {
	a, b := rand.Intn(10)+1, rand.Intn(10)+1
	return Challenge{
		Question: fmt.Sprintf("What is %d + %d?", a, b),
		Token:    svc.makeToken(a+b, NowFunc().Unix()),
	}
}

// Verify reports whether the caller may administer the session: the professor
// password must match and the submitted answer must verify against the signed
// challenge token.
func (svc *Service) Verify(password string, answer int, token string) bool {
	if bcrypt.CompareHashAndPassword(svc.passwordHash, []byte(password)) != nil {
		return false
	}
	return svc.verifyAnswer(answer, token) == nil
}

func (svc *Service) makeToken(answer int, ts int64) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.FormatInt(ts, 10)))
	return fmt.Sprintf("%s-%s", tsB32, svc.sign(answer, ts))
}

// verifyAnswer checks that the submitted answer re-produces the signed token
// and that the challenge is still fresh.
func (svc *Service) verifyAnswer(answer int, token string) error {
	if token == "" {
		return errInvalidChallenge
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidChallenge
	}
	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return errInvalidChallenge
	}
	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errInvalidChallenge
	}

	// check that the token has not been tampered with
	newToken := svc.makeToken(answer, ts)
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return errInvalidChallenge
	}

	if NowFunc().Sub(time.Unix(ts, 0)) > svc.maxAge {
		return errChallengeExpired
	}
	return nil
}

func (svc *Service) sign(answer int, ts int64) string {
	key := sha256.Sum256(append(salt, svc.secretKey...))
	h := hmac.New(sha256.New, key[:])
	_, _ = fmt.Fprintf(h, "%d:%d", answer, ts)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
