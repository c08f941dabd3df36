// Package identity models the best-effort client identity signal (public IP
// and/or hashed device fingerprint) resolved asynchronously in the browser.
// A token is never a verified identity; it is an advisory anti-abuse hint.
package identity

import (
	"context"
	"strings"
	"time"
)

type State int

const (
	// StateResolved means the provider produced a usable token value.
	StateResolved State = iota
	// StatePending means the client-side lookup has not finished yet;
	// a pending placeholder must never be admitted as a real identity.
	StatePending
	// StateUnavailable means the lookup failed for good; registration may
	// proceed without an identity signal.
	StateUnavailable
)

type Token struct {
	Value string
	State State
}

func (t Token) Resolved() bool    { return t.State == StateResolved }
func (t Token) Pending() bool     { return t.State == StatePending }
func (t Token) Unavailable() bool { return t.State == StateUnavailable }

// placeholder values the legacy frontend ships while its IP lookup runs or
// after it gave up; both locales are accepted for compatibility.
var (
	pendingValues     = []string{"", "pending", "loading", "carregando ip..."}
	unavailableValues = []string{"unavailable", "não disponível", "nao disponivel"}
)

// Parse classifies a raw wire value into a Token.
func Parse(raw string) Token {
	val := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range pendingValues {
		if val == p {
			return Token{State: StatePending}
		}
	}
	for _, u := range unavailableValues {
		if val == u {
			return Token{State: StateUnavailable}
		}
	}
	return Token{Value: strings.TrimSpace(raw), State: StateResolved}
}

type (
	// Provider is any source of a client identity token. Resolve blocks
	// until the token is known or ctx is done.
	Provider interface {
		Resolve(ctx context.Context) (Token, error)
	}

	ProviderFunc func(ctx context.Context) (Token, error)
)

func (f ProviderFunc) Resolve(ctx context.Context) (Token, error) { return f(ctx) }

// Static wraps a request-supplied value as an immediately-resolving Provider.
func Static(raw string) Provider {
	tok := Parse(raw)
	return ProviderFunc(func(context.Context) (Token, error) {
		return tok, nil
	})
}

// Await resolves p with a bounded cooperative wait. A provider that has not
// produced a resolved or unavailable token by the deadline yields a pending
// token; callers treat that as "retry once the client lookup finishes".
func Await(ctx context.Context, p Provider, timeout time.Duration) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tok, err := p.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Token{State: StatePending}, nil
		}
		return Token{}, err
	}
	return tok, nil
}
