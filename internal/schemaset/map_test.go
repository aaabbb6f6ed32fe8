package schemaset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddInterning(t *testing.T) {
	m := New()

	s1 := NewSchema()
	s1.Add(1)
	s1.Add(2)

	s2 := NewSchema()
	s2.Add(2)
	s2.Add(1) // same set, different insertion order

	id1 := m.Add(s1)
	id2 := m.Add(s2)
	require.Equal(t, id1, id2, "equal sets must intern to the same schema_id")

	s3 := NewSchema()
	s3.Add(1)
	s3.Add(3)
	id3 := m.Add(s3)
	require.NotEqual(t, id1, id3)

	require.Equal(t, 2, m.Len())
}

func TestLookupRoundTrip(t *testing.T) {
	m := New()
	s := NewSchema()
	s.Add(5)
	s.Add(9)
	id := m.Add(s)

	got := m.Lookup(id)
	require.NotNil(t, got)
	require.ElementsMatch(t, []int{5, 9}, got.NodeIDs())
}

func TestStoreLoadRoundTrip(t *testing.T) {
	m := New()
	a := NewSchema()
	a.Add(0)
	a.Add(1)
	m.Add(a)

	b := NewSchema()
	b.Add(0)
	b.Add(2)
	m.Add(b)

	var buf bytes.Buffer
	require.NoError(t, m.Store(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Len(), loaded.Len())

	for _, pair := range m.Iterate() {
		again := loaded.Lookup(pair.SchemaID)
		require.NotNil(t, again)
		require.True(t, pair.Schema.Equal(again))
	}
}

func TestIterateReverseIsReverseOfIterate(t *testing.T) {
	m := New()
	for i := 0; i < 3; i++ {
		s := NewSchema()
		s.Add(i)
		m.Add(s)
	}

	fwd := m.Iterate()
	rev := m.IterateReverse()
	require.Len(t, rev, len(fwd))
	for i := range fwd {
		require.Equal(t, fwd[i].SchemaID, rev[len(rev)-1-i].SchemaID)
	}
}
