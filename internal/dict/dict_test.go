package dict

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternAssignsDenseIDs(t *testing.T) {
	d := New()
	id0 := d.Intern("hello")
	id1 := d.Intern("world")
	id0Again := d.Intern("hello")

	require.Equal(t, uint32(0), id0)
	require.Equal(t, uint32(1), id1)
	require.Equal(t, id0, id0Again)
	require.Equal(t, 2, d.Len())

	tok, ok := d.Lookup(id1)
	require.True(t, ok)
	require.Equal(t, "world", tok)
}

func TestDictionaryStoreLoadRoundTrip(t *testing.T) {
	d := New()
	d.Intern("alpha")
	d.Intern("beta")
	d.Intern("gamma")

	var buf bytes.Buffer
	require.NoError(t, d.Store(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, d.Len(), loaded.Len())
	for i := 0; i < d.Len(); i++ {
		want, _ := d.Lookup(uint32(i))
		got, ok := loaded.Lookup(uint32(i))
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestDictionarySizeMatchesStoreLength(t *testing.T) {
	d := New()
	d.Intern("alpha")
	d.Intern("beta")

	var buf bytes.Buffer
	require.NoError(t, d.Store(&buf))
	require.EqualValues(t, buf.Len(), d.Size())
}

func TestTimestampDictionaryRoundTrip(t *testing.T) {
	d := NewTimestamp()
	id := d.Intern("2024-01-01T00:00:00Z", 1704067200000)
	again := d.Intern("2024-01-01T00:00:00Z", 1704067200000)
	require.Equal(t, id, again)

	var buf bytes.Buffer
	require.NoError(t, d.Store(&buf))

	loaded, err := LoadTimestamp(&buf)
	require.NoError(t, err)
	entry, ok := loaded.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "2024-01-01T00:00:00Z", entry.Raw)
	require.Equal(t, int64(1704067200000), entry.EpochMillis)
}
