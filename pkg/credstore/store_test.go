package credstore_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*credstore.Store, *credstore.MemoryKV, *credstore.MemoryKV) {
	t.Helper()
	durable, ephemeral := credstore.NewMemoryKV(), credstore.NewMemoryKV()
	s := credstore.New(credstore.Options{
		Durable:              durable,
		Ephemeral:            ephemeral,
		HasPersistentStorage: true,
		Logger:               slogx.Discard(),
	})
	return s, durable, ephemeral
}

func sampleRecord() credstore.Record {
	return credstore.Record{
		User:  json.RawMessage(`{"id":"42","email":"ana@loja.com","nome":"Ana"}`),
		Token: "abc.def.ghi",
		Exp:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, durable := range []bool{true, false} {
		s, _, _ := newStore(t)
		rec := sampleRecord()
		require.NoError(t, s.Write(rec, durable))

		got, ok := s.Read()
		require.True(t, ok)
		require.JSONEq(t, string(rec.User), string(got.User))
		require.Equal(t, rec.Token, got.Token)
		require.Equal(t, rec.Exp, got.Exp)
	}
}

func TestWriteLeavesNoResidueInOtherScope(t *testing.T) {
	t.Parallel()

	s, durable, ephemeral := newStore(t)

	require.NoError(t, s.Write(sampleRecord(), false))
	require.Equal(t, credstore.Ephemeral, s.ScopeOf())

	require.NoError(t, s.Write(sampleRecord(), true))
	require.Equal(t, credstore.Durable, s.ScopeOf())

	_, ok, _ := ephemeral.Get(credstore.Key)
	require.False(t, ok)
	_, ok, _ = durable.Get(credstore.Key)
	require.True(t, ok)
}

func TestReadPrefersDurable(t *testing.T) {
	t.Parallel()

	s, durable, ephemeral := newStore(t)

	d := sampleRecord()
	d.Token = "durable"
	e := sampleRecord()
	e.Token = "ephemeral"

	db, _ := json.Marshal(d)
	eb, _ := json.Marshal(e)
	require.NoError(t, durable.Set(credstore.Key, string(db)))
	require.NoError(t, ephemeral.Set(credstore.Key, string(eb)))

	got, ok := s.Read()
	require.True(t, ok)
	require.Equal(t, "durable", got.Token)
}

func TestReadMalformedClears(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":     `{{{`,
		"no token":     `{"user":{"id":"1"},"exp":1}`,
		"no user id":   `{"user":{"email":"x"},"token":"t"}`,
		"null user id": `{"user":{"id":null},"token":"t"}`,
		"exp string":   `{"user":{"id":"1"},"token":"t","exp":"soon"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, _, ephemeral := newStore(t)
			require.NoError(t, ephemeral.Set(credstore.Key, raw))

			_, ok := s.Read()
			require.False(t, ok)

			_, present, _ := ephemeral.Get(credstore.Key)
			require.False(t, present)
		})
	}
}

func TestClearIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _, _ := newStore(t)
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	require.NoError(t, s.Write(sampleRecord(), true))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	_, ok := s.Read()
	require.False(t, ok)
	require.Equal(t, credstore.ScopeNone, s.ScopeOf())
}

func TestWithoutPersistentStorageIsNoop(t *testing.T) {
	t.Parallel()

	durable := credstore.NewMemoryKV()
	s := credstore.New(credstore.Options{
		Durable:   durable,
		Ephemeral: credstore.NewMemoryKV(),
	})

	require.False(t, s.Enabled())
	require.NoError(t, s.Write(sampleRecord(), true))
	require.NoError(t, s.Clear())

	_, ok := s.Read()
	require.False(t, ok)
	_, ok, _ = durable.Get(credstore.Key)
	require.False(t, ok)
}

func TestWriteRejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	s, _, _ := newStore(t)
	err := s.Write(credstore.Record{Token: "t"}, true)
	require.True(t, errors.Is(err, credstore.ErrInvalidRecord))
}

func TestMergeKeepsScopeAndExtras(t *testing.T) {
	t.Parallel()

	s, _, _ := newStore(t)
	require.NoError(t, s.Write(sampleRecord(), false))

	require.NoError(t, s.Merge(map[string]json.RawMessage{
		"dashboard": json.RawMessage(`{"saldo":"10.00"}`),
		"token":     json.RawMessage(`"hijack"`),
	}))

	got, ok := s.Read()
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", got.Token)
	require.JSONEq(t, `{"saldo":"10.00"}`, string(got.Extra["dashboard"]))
	require.Equal(t, credstore.Ephemeral, s.ScopeOf())
}

func TestRecordValidAt(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rec := sampleRecord()

	rec.Exp = now.Add(-time.Millisecond).UnixMilli()
	require.False(t, rec.ValidAt(now))

	rec.Exp = now.UnixMilli()
	require.False(t, rec.ValidAt(now))

	rec.Exp = now.Add(time.Minute).UnixMilli()
	require.True(t, rec.ValidAt(now))

	rec.Exp = 0
	require.True(t, rec.ValidAt(now))
}

func TestFileKV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	kv := credstore.NewFileKV(path)

	_, ok, err := kv.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set("a", "1"))
	require.NoError(t, kv.Set("b", "2"))

	// A second handle on the same file sees the writes
	other := credstore.NewFileKV(path)
	v, ok, err := other.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, kv.Delete("a"))
	require.NoError(t, kv.Delete("b"))
	require.NoError(t, kv.Delete("b"))
	require.NoFileExists(t, path)
}

// flakyKV fails the next setFails writes and deleteFails deletes.
type flakyKV struct {
	*credstore.MemoryKV

	mu          sync.Mutex
	setFails    int
	deleteFails int
}

var errDisk = errors.New("disk unavailable")

func (kv *flakyKV) Set(key, value string) error {
	kv.mu.Lock()
	fail := kv.setFails > 0
	if fail {
		kv.setFails--
	}
	kv.mu.Unlock()
	if fail {
		return errDisk
	}
	return kv.MemoryKV.Set(key, value)
}

func (kv *flakyKV) Delete(key string) error {
	kv.mu.Lock()
	fail := kv.deleteFails > 0
	if fail {
		kv.deleteFails--
	}
	kv.mu.Unlock()
	if fail {
		return errDisk
	}
	return kv.MemoryKV.Delete(key)
}

func TestScopeDeleteFailures(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*credstore.Store, *flakyKV) {
		durable := &flakyKV{MemoryKV: credstore.NewMemoryKV()}
		s := credstore.New(credstore.Options{
			Durable:              durable,
			Ephemeral:            credstore.NewMemoryKV(),
			HasPersistentStorage: true,
			Logger:               slogx.Discard(),
		})
		require.NoError(t, s.Write(sampleRecord(), true))
		return s, durable
	}

	t.Run("write retries a failed delete of the other scope", func(t *testing.T) {
		t.Parallel()
		s, durable := setup(t)
		durable.deleteFails = 1

		require.NoError(t, s.Write(sampleRecord(), false))
		require.Equal(t, credstore.Ephemeral, s.ScopeOf())
	})

	t.Run("write reports residue it could not delete", func(t *testing.T) {
		t.Parallel()
		s, durable := setup(t)
		durable.deleteFails = 2

		err := s.Write(sampleRecord(), false)
		require.ErrorIs(t, err, errDisk)
		require.ErrorContains(t, err, "clear durable scope")
	})

	t.Run("clear retries", func(t *testing.T) {
		t.Parallel()
		s, durable := setup(t)
		durable.deleteFails = 1

		require.NoError(t, s.Clear())
		_, ok := s.Read()
		require.False(t, ok)
	})

	t.Run("clear reports a lasting failure", func(t *testing.T) {
		t.Parallel()
		s, durable := setup(t)
		durable.deleteFails = 2

		require.ErrorIs(t, s.Clear(), errDisk)
	})
}
