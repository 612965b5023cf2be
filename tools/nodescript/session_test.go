package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dueldanov/nodescript/internal/nodescript"
	"github.com/dueldanov/nodescript/internal/registry"
)

func TestUnitRef(t *testing.T) {
	tests := []struct {
		path string
		want registry.Ref
	}{
		{"rates.ns", registry.Ref{Name: "rates"}},
		{"dir/rates@2.ns", registry.Ref{Name: "rates", Version: "2"}},
		{"/abs/premium", registry.Ref{Name: "premium"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, unitRef(tt.path))
		})
	}
}

func TestSessionEvaluatesGivenFile(t *testing.T) {
	dir := t.TempDir()
	for name, rate := range map[string]string{"rates@1.ns": "1", "rates@2.ns": "2", "rates.ns": "3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("Rates:\n  rate = "+rate+"\n"), 0o600))
	}

	tests := []struct {
		file string
		want string
	}{
		{"rates@1.ns", "1"},
		{"rates@2.ns", "2"},
		{"rates.ns", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := cli.NewContext(cli.NewApp(), flag.NewFlagSet("test", flag.ContinueOnError), nil)
			s, done, err := newSession(ctx, filepath.Join(dir, tt.file))
			require.NoError(t, err)
			defer done()

			_, err = s.compile()
			require.NoError(t, err)
			out, err := s.evalLine("Rates.rate")
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
		})
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"n=10", "rate=0.5", "name='x'", "flag=true", "neg=-3", "plain=hello world"})
	require.NoError(t, err)
	require.Equal(t, nodescript.Params{
		"n":     int64(10),
		"rate":  0.5,
		"name":  "x",
		"flag":  true,
		"neg":   int64(-3),
		"plain": "hello world",
	}, params)

	_, err = parseParams([]string{"novalue"})
	require.ErrorIs(t, err, ErrBadParam)
	_, err = parseParams([]string{"=1"})
	require.ErrorIs(t, err, ErrBadParam)
}

func TestSessionEvalLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fact.ns")
	require.NoError(t, os.WriteFile(path, []byte(`
A:
  n =?
  fact = if n <= 1 then 1 else n * A(n: n-1).fact
  fail = ERR('too big:', n)
`), 0o600))

	ctx := cli.NewContext(cli.NewApp(), flag.NewFlagSet("test", flag.ContinueOnError), nil)
	s, done, err := newSession(ctx, path)
	require.NoError(t, err)
	defer done()

	unit, err := s.compile()
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, unit.Nodes())

	out, err := s.evalLine("A.fact n=10")
	require.NoError(t, err)
	require.Equal(t, "3628800", out)

	out, err = s.evalLine("A.fail n=3")
	require.NoError(t, err)
	require.Contains(t, out, "too big: 3")

	_, err = s.evalLine("fact")
	require.Error(t, err)
}
