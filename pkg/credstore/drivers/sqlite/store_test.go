package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/credstore/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreKV(t *testing.T) {
	t.Parallel()

	s := openStore(t, filepath.Join(t.TempDir(), "state.db"))

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("k", "v1"))
	require.NoError(t, s.Set("k", "v2"))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))

	_, ok, err = s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDurableScopeSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	rec := credstore.Record{
		User:  []byte(`{"id":"7","email":"ana@loja.com"}`),
		Token: "tok",
		Exp:   1_900_000_000_000,
	}

	first := openStore(t, path)
	cs := credstore.New(credstore.Options{
		Durable:              first,
		Ephemeral:            credstore.NewMemoryKV(),
		HasPersistentStorage: true,
	})
	require.NoError(t, cs.Write(rec, true))
	require.NoError(t, first.Close())

	// A fresh process: new connection, empty ephemeral scope
	second := openStore(t, path)
	cs = credstore.New(credstore.Options{
		Durable:              second,
		Ephemeral:            credstore.NewMemoryKV(),
		HasPersistentStorage: true,
	})

	got, ok := cs.Read()
	require.True(t, ok)
	require.Equal(t, rec.Token, got.Token)
	require.Equal(t, rec.Exp, got.Exp)
	require.JSONEq(t, string(rec.User), string(got.User))
	require.Equal(t, credstore.Durable, cs.ScopeOf())
}
