package portalsdk_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// brokenKV is a MemoryKV whose writes or deletes can be switched off.
type brokenKV struct {
	*credstore.MemoryKV

	failSet    atomic.Bool
	failDelete atomic.Bool
}

func (kv *brokenKV) Set(key, value string) error {
	if kv.failSet.Load() {
		return errors.New("read-only file system")
	}
	return kv.MemoryKV.Set(key, value)
}

func (kv *brokenKV) Delete(key string) error {
	if kv.failDelete.Load() {
		return errors.New("read-only file system")
	}
	return kv.MemoryKV.Delete(key)
}

func newBrokenStore() (*credstore.Store, *brokenKV, *brokenKV) {
	durable := &brokenKV{MemoryKV: credstore.NewMemoryKV()}
	ephemeral := &brokenKV{MemoryKV: credstore.NewMemoryKV()}
	return credstore.New(credstore.Options{
		Durable:              durable,
		Ephemeral:            ephemeral,
		HasPersistentStorage: true,
		Logger:               slogx.Discard(),
	}), durable, ephemeral
}

func TestLoginSurvivesFailedPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	store, _, ephemeral := newBrokenStore()
	ephemeral.failSet.Store(true)
	c := newClient(t, sb, store, nil)

	res, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password})
	require.NoError(t, err)

	_, ok := store.Read()
	require.False(t, ok, "nothing reached storage")

	tok, ok := c.Auth().Token()
	require.True(t, ok)
	require.Equal(t, res.Session.Token, tok)
	require.True(t, portalsdk.RequireAuth(c.Auth()).Admit)

	_, err = c.ListOrders(ctx, portalsdk.OrderFilter{})
	require.NoError(t, err, "the bearer is still sent")

	t.Run("a later successful write takes over", func(t *testing.T) {
		ephemeral.failSet.Store(false)
		require.True(t, c.Auth().Refresh(ctx))

		rec, ok := store.Read()
		require.True(t, ok)
		tok, _ := c.Auth().Token()
		require.Equal(t, rec.Token, tok)
	})
}

func TestLogoutWhenStorageCannotDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sb := newSandbox(t, false)
	store, durable, _ := newBrokenStore()
	c := newClient(t, sb, store, nil)

	_, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password, Remember: true})
	require.NoError(t, err)

	durable.failDelete.Store(true)
	c.Auth().Logout(ctx)

	_, stale := store.Read()
	require.True(t, stale, "the record could not be deleted")

	_, ok := c.Auth().Token()
	require.False(t, ok)
	require.False(t, c.Auth().IsLoggedIn())
	require.True(t, portalsdk.RequireGuest(c.Auth()).Admit)
	require.Equal(t, portalsdk.LoginPath, portalsdk.RequireAuth(c.Auth()).Redirect)

	t.Run("logging in again is honoured", func(t *testing.T) {
		durable.failDelete.Store(false)
		res, err := c.Auth().LoginSmart(ctx, portalsdk.Credentials{Email: email, Password: password, Remember: true})
		require.NoError(t, err)

		tok, ok := c.Auth().Token()
		require.True(t, ok)
		require.Equal(t, res.Session.Token, tok)
	})
}
