package ingestrecord

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clpstructured/clps/internal/clperr"
)

func TestDecodeObject(t *testing.T) {
	obj, err := Decode(strings.NewReader(`{"a":1,"b":"x"}`))
	require.NoError(t, err)
	require.Equal(t, int64(1), obj["a"])
	require.Equal(t, "x", obj["b"])
}

func TestDecodeRejectsNonObjectRoot(t *testing.T) {
	_, err := Decode(strings.NewReader(`[1,2,3]`))
	require.ErrorIs(t, err, clperr.ErrMalformedInput)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"a":`))
	require.ErrorIs(t, err, clperr.ErrMalformedInput)
}

func TestScannerSkipsMalformedLines(t *testing.T) {
	input := "{\"a\":1}\n not json\n{\"a\":2}\n"
	sc := NewScanner(strings.NewReader(input))

	var records []map[string]any
	for sc.Scan() {
		records = append(records, sc.Record())
	}
	require.Len(t, records, 2)
	require.Equal(t, int64(1), records[0]["a"])
	require.Equal(t, int64(2), records[1]["a"])
}
