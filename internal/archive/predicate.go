package archive

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/clpstructured/clps/internal/clperr"
)

// Predicate is the reader's two-phase row gate, grounded on
// SchemaReader.cpp's filter()/populate_string_queries() split: PreFilter
// runs against the raw per-column ids already sitting in memory from the
// column-major read, before any dictionary lookup or document assembly;
// Filter runs against the fully reconstructed document. A predicate that
// can reject most rows in PreFilter avoids detokenizing and walking a
// document for them.
type Predicate interface {
	// PreFilter is consulted once per row, before that row's columns are
	// resolved through their dictionaries. rawColumnIDs holds, per real
	// (non-constant) column in the schema's canonical order, the raw
	// on-disk representation: a dictionary id for string/date columns,
	// or the bit pattern of the stored int64/float64/bool.
	PreFilter(schemaID int, rawColumnIDs []uint64) bool
	// Filter is consulted once per row that survived PreFilter, against
	// the fully reconstructed document.
	Filter(doc any) bool
}

// AcceptAll is the zero-cost predicate used when the reader is asked to
// emit every row.
type AcceptAll struct{}

func (AcceptAll) PreFilter(int, []uint64) bool { return true }
func (AcceptAll) Filter(any) bool              { return true }

// JSONPathPredicate gates rows by evaluating a compiled JSONPath
// expression against the reconstructed document; it does not attempt a
// raw-id PreFilter (an expression over arbitrary nested paths has no
// cheap id-level shortcut in general).
type JSONPathPredicate struct {
	expr jp.Expr
}

// NewJSONPathPredicate compiles path (e.g. "$.meta.level") once.
func NewJSONPathPredicate(path string) (*JSONPathPredicate, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: parse jsonpath %q: %v", clperr.ErrMalformedInput, path, err)
	}
	return &JSONPathPredicate{expr: expr}, nil
}

func (p *JSONPathPredicate) PreFilter(int, []uint64) bool { return true }

func (p *JSONPathPredicate) Filter(doc any) bool {
	return len(p.expr.Get(doc)) > 0
}
