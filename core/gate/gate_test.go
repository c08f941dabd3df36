package gate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/rollcall/core"
)

const testPassword = "professor@aws"

func newTestService(t *testing.T) *Service {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newTestService() failed: %v", err)
	}
	conf := &core.Config{SecretKey: []byte("secret"), AdminPasswordHash: string(hash)}
	return NewService(conf)
}

// answerFor recovers the expected answer from the question text.
func answerFor(t *testing.T, ch Challenge) int {
	var a, b int
	if _, err := fmt.Sscanf(ch.Question, "What is %d + %d?", &a, &b); err != nil {
		t.Fatalf("answerFor(%q) failed: %v", ch.Question, err)
	}
	return a + b
}

func TestIssueVerifyChallenge(t *testing.T) {
	svc := newTestService(t)
	ch := svc.IssueChallenge()

	assert.True(t, svc.Verify(testPassword, answerFor(t, ch), ch.Token))
	assert.False(t, svc.Verify("wrong password", answerFor(t, ch), ch.Token))
	assert.False(t, svc.Verify(testPassword, answerFor(t, ch)+1, ch.Token))
	assert.False(t, svc.Verify(testPassword, answerFor(t, ch), ""))
	assert.False(t, svc.Verify(testPassword, answerFor(t, ch), "lmaooolol"))
	assert.False(t, svc.Verify(testPassword, answerFor(t, ch), ch.Token+"x"))
}

func TestChallengeExpiry(t *testing.T) {
	svc := newTestService(t)

	// issue a challenge in the past
	NowFunc = func() time.Time { return time.Now().Add(-10 * time.Minute) }
	ch := svc.IssueChallenge()
	answer := answerFor(t, ch)
	NowFunc = time.Now // reset

	assert.ErrorIs(t, svc.verifyAnswer(answer, ch.Token), errChallengeExpired)
	assert.False(t, svc.Verify(testPassword, answer, ch.Token))
}

func TestChallengeTokenBoundToAnswer(t *testing.T) {
	svc := newTestService(t)
	ch1 := svc.IssueChallenge()
	ch2 := svc.IssueChallenge()

	a1, a2 := answerFor(t, ch1), answerFor(t, ch2)
	if a1 == a2 {
		t.Skip("challenges share an answer; nothing to cross-check")
	}
	assert.Error(t, svc.verifyAnswer(a2, ch1.Token))
	assert.Error(t, svc.verifyAnswer(a1, ch2.Token))
}
