package run

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces session tokens. One token tags every log line of
// one coordinator run, so interleaved sessions in a shared log stay
// separable.
type TokenGenerator interface {
	Token() string
}

// V7Tokens generates time-sortable UUIDv7 session tokens.
//
// Stateless and safe for concurrent use.
type V7Tokens struct{}

// Token returns a new UUIDv7 as a hyphenated string. Panics if generation
// fails, which does not happen in practice.
func (V7Tokens) Token() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokens returns predetermined tokens in order, for deterministic
// tests. Token panics once the sequence is exhausted so a misconfigured
// test fails fast instead of reusing tokens.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator that returns tokens in order.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Token returns the next predetermined token.
func (g *FixedTokens) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	t := g.tokens[g.idx]
	g.idx++
	return t
}
