package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAtOrdersWithinOneMillisecond(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]idx.ID, 5)
	for i := range ids {
		ids[i] = idx.NewAt(at)
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1].String(), ids[i].String())
	}
	require.True(t, at.Equal(ids[0].Time()))
}

func TestValid(t *testing.T) {
	t.Parallel()

	require.True(t, idx.Valid(idx.New().String()))
	for _, s := range []string{"", "abc", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z!"} {
		require.False(t, idx.Valid(s), "input %q", s)
	}
	require.True(t, idx.ID("bogus").Time().IsZero())
}
