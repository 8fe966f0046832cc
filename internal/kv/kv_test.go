package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set("k", []byte("v1")))
			require.NoError(t, s.Set("k", []byte("v2")))
			v, err := s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(v))

			require.NoError(t, s.Delete("k"))
			require.NoError(t, s.Delete("k"))
			_, err = s.Get("k")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestTypedHelpers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, SetInt(s, "softLimit", 1900))
			n, ok := GetInt(s, "softLimit")
			assert.True(t, ok)
			assert.Equal(t, 1900, n)

			require.NoError(t, SetFloat(s, "userWeight", 72.4))
			f, ok := GetFloat(s, "userWeight")
			assert.True(t, ok)
			assert.InDelta(t, 72.4, f, 1e-9)

			require.NoError(t, SetBool(s, "hasUserHealthData", true))
			assert.True(t, GetBool(s, "hasUserHealthData"))
			assert.False(t, GetBool(s, "missingFlag"))

			require.NoError(t, SetString(s, "nickname", "rook"))
			assert.Equal(t, "rook", GetString(s, "nickname"))
		})
	}
}

func TestMalformedValuesReadAsAbsent(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Set("n", []byte("not-a-number")))
	_, ok := GetInt(s, "n")
	assert.False(t, ok)

	require.NoError(t, s.Set("doc", []byte("{broken")))
	var dst map[string]int
	assert.False(t, GetJSON(s, "doc", &dst))
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	buf := []byte("abc")
	require.NoError(t, s.Set("k", buf))
	buf[0] = 'x'

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))

	v[1] = 'y'
	again, _ := s.Get("k")
	assert.Equal(t, "abc", string(again))
}
