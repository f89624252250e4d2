package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	t.Parallel()

	s := NewState("11.222.333/0001-81", "req-1", "conv-1")
	assert.Equal(t, "11222333000181", s.TaxID)
	assert.Equal(t, "req-1", s.RequestID)
	assert.Equal(t, "conv-1", s.ConversationID)
	assert.NotNil(t, s.Sources)
	assert.Empty(t, s.Sources)
	assert.Nil(t, s.Facts)
	assert.Nil(t, s.Presence)
	assert.Zero(t, s.TokensUsed)
}

func TestState_WithDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := NewState("11222333000181", "req", "").WithSources("a")

	next := base.
		WithFacts(OfficialFacts{LegalName: "ACME LTDA"}).
		WithWebResults([]SearchResult{{URL: "https://acme.com.br"}}).
		WithPresence(DigitalPresence{Site: StrPtr("https://acme.com.br")}).
		WithSources("b").
		WithTokens(42)

	assert.Nil(t, base.Facts)
	assert.Nil(t, base.WebResults)
	assert.Nil(t, base.Presence)
	assert.Equal(t, []string{"a"}, base.Sources)
	assert.Zero(t, base.TokensUsed)

	require.NotNil(t, next.Facts)
	assert.Equal(t, "ACME LTDA", next.Facts.LegalName)
	assert.Len(t, next.WebResults, 1)
	require.NotNil(t, next.Presence)
	assert.Equal(t, "https://acme.com.br", Deref(next.Presence.Site))
	assert.Equal(t, []string{"a", "b"}, next.Sources)
	assert.Equal(t, 42, next.TokensUsed)
}

func TestState_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := NewState("11222333000181", "req", "").
		WithFacts(OfficialFacts{LegalName: "A"}).
		WithPresence(DigitalPresence{Email: StrPtr("a@a.com")}).
		WithSources("x")

	c := orig.Clone()
	c.Facts.LegalName = "B"
	*c.Presence.Email = "b@b.com"
	c.Sources[0] = "y"

	assert.Equal(t, "A", orig.Facts.LegalName)
	assert.Equal(t, "a@a.com", Deref(orig.Presence.Email))
	assert.Equal(t, []string{"x"}, orig.Sources)
}

func TestState_WithSourcesIsSetUnion(t *testing.T) {
	t.Parallel()

	s := NewState("11222333000181", "req", "").
		WithSources("a", "b").
		WithSources("b", "", "c", "a")

	assert.Equal(t, []string{"a", "b", "c"}, s.Sources)
	assert.True(t, s.HasSource("c"))
	assert.False(t, s.HasSource("d"))
}

func TestState_WithTokensAccumulates(t *testing.T) {
	t.Parallel()

	s := NewState("11222333000181", "req", "").WithTokens(10).WithTokens(5)
	assert.Equal(t, 15, s.TokensUsed)
}

func TestDigitalPresence_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, DigitalPresence{}.Empty())
	assert.True(t, DigitalPresence{Logo: StrPtr("x")}.Empty())
	assert.False(t, DigitalPresence{Instagram: StrPtr("https://instagram.com/acme")}.Empty())
}

func TestStrPtr(t *testing.T) {
	t.Parallel()

	assert.Nil(t, StrPtr(""))
	assert.Equal(t, "a", Deref(StrPtr("a")))
	assert.Equal(t, "", Deref(nil))
}
