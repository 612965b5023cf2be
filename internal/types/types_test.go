package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubtype(t *testing.T) {
	order := NewModel("Order")

	tests := []struct {
		a, b *Type
		want bool
	}{
		{Integer, Number, true},
		{Integer, Decimal, true},
		{Decimal, Number, true},
		{Integer, Base, true},
		{Number, Integer, false},
		{String, Number, false},
		{Boolean, Boolean, true},
		{order, Base, true},
		{order, String, false},
	}

	for _, tt := range tests {
		if got := Subtype(tt.a, tt.b); got != tt.want {
			t.Errorf("Subtype(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLUB(t *testing.T) {
	order := NewModel("Order")

	tests := []struct {
		a, b *Type
		want *Type
	}{
		{Integer, Integer, Integer},
		{String, String, String},
		{Integer, Decimal, Decimal},
		{Decimal, Integer, Decimal},
		{String, Boolean, Base},
		{Integer, Number, Number},
		{order, order, order},
		{order, Integer, Base},
	}

	for _, tt := range tests {
		if got := LUB(tt.a, tt.b); got != tt.want {
			t.Errorf("LUB(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIntegerWidensToDecimal(t *testing.T) {
	require.True(t, Subtype(Integer, Decimal))
	require.False(t, Subtype(Decimal, Integer))
	require.Equal(t, Decimal, NumericResult([]*Type{Integer, Decimal}))
	require.Equal(t, Integer, NumericResult([]*Type{Integer, Integer}))
}

func TestMatchFirstMatchWins(t *testing.T) {
	m := NewMatcher()
	m.Register("+",
		Fixed(Decimal, Number, Number),
		Fixed(Integer, Integer, Integer),
	)

	got, err := m.Match("+", []*Type{Integer, Integer})
	require.NoError(t, err)
	require.Equal(t, Decimal, got, "general rule registered first must win")

	m2 := NewMatcher()
	m2.Register("+",
		Fixed(Integer, Integer, Integer),
		Fixed(Decimal, Number, Number),
	)

	got, err = m2.Match("+", []*Type{Integer, Integer})
	require.NoError(t, err)
	require.Equal(t, Integer, got)
}

func TestMatchDynamicResult(t *testing.T) {
	m := NewMatcher()
	m.Register("*", Dynamic(NumericResult, Number, Number))

	tests := []struct {
		args []*Type
		want *Type
	}{
		{[]*Type{Integer, Integer}, Integer},
		{[]*Type{Decimal, Decimal}, Decimal},
		{[]*Type{Integer, Decimal}, Decimal},
		{[]*Type{Base, Integer}, Base},
	}

	for _, tt := range tests {
		got, err := m.Match("*", tt.args)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "args %v", tt.args)
	}
}

func TestMatchErrors(t *testing.T) {
	m := NewMatcher()
	m.Register("-", Dynamic(NumericResult, Number, Number))

	_, err := m.Match("^", []*Type{Integer, Integer})
	require.ErrorIs(t, err, ErrUnknownFunction)

	_, err = m.Match("-", []*Type{String, Integer})
	require.ErrorIs(t, err, ErrNoMatchingOverload)

	_, err = m.Match("-", []*Type{Integer})
	require.ErrorIs(t, err, ErrNoMatchingOverload)
}

func TestMatchVariadic(t *testing.T) {
	m := NewMatcher()
	m.Register("MAX", Variadic(Number, Number))

	got, err := m.Match("MAX", []*Type{Integer, Decimal, Integer})
	require.NoError(t, err)
	require.Equal(t, Number, got)

	got, err = m.Match("MAX", nil)
	require.NoError(t, err)
	require.Equal(t, Number, got)

	_, err = m.Match("MAX", []*Type{Integer, String})
	require.ErrorIs(t, err, ErrNoMatchingOverload)
}

func TestBaseActualIsAccepted(t *testing.T) {
	sig := Fixed(Boolean, Number, Number)
	require.True(t, sig.Accepts([]*Type{Base, Integer}))
	require.False(t, sig.Accepts([]*Type{Boolean, Integer}))
}
