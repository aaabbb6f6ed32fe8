package column

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schematree"
	"github.com/clpstructured/clps/internal/value"
)

// placeholder marks, inside a log-type skeleton, where a variable token
// was extracted. It is a control byte that cannot appear in normal text,
// so skeletons round-trip unambiguously.
const placeholder = '\x01'

// tokenize splits s on whitespace, classifying each token as a static
// skeleton piece or an extracted variable: a token is a variable if it
// contains a digit or an '=' (see isVariableToken); any other token, with
// or without punctuation, stays in the skeleton. The skeleton keeps
// original whitespace runs intact and
// substitutes one placeholder byte per variable.
func tokenize(s string) (skeleton string, vars []string) {
	var sb strings.Builder
	var word strings.Builder
	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if isVariableToken(w) {
			vars = append(vars, w)
			sb.WriteByte(placeholder)
		} else {
			sb.WriteString(w)
		}
		word.Reset()
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			flushWord()
			sb.WriteRune(r)
			continue
		}
		word.WriteRune(r)
	}
	flushWord()
	return sb.String(), vars
}

// isVariableToken reports whether a whitespace-delimited word looks like
// an extractable variable (a number, an id, a key=value pair) rather than
// static log-message text.
func isVariableToken(w string) bool {
	hasDigit := false
	for _, r := range w {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if r == '=' {
			return true
		}
	}
	return hasDigit
}

// detokenize re-expands a skeleton against its variable list, for reader
// reconstruction.
func detokenize(skeleton string, vars []string) string {
	var sb strings.Builder
	vi := 0
	for _, r := range skeleton {
		if r == placeholder {
			if vi < len(vars) {
				sb.WriteString(vars[vi])
				vi++
			}
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// clpStringColumn stores, per row, a log-type skeleton id (in templateD)
// and a parallel list of variable-dictionary ids (in varD). The same
// mechanism backs both ClpString columns (templateD is the log_type
// dictionary) and Array columns (templateD is the array dictionary) per
// spec §4.4.
type clpStringColumn struct {
	nodeID      int
	typ         schematree.NodeType
	tree        *schematree.Tree
	varD        *dict.Dictionary
	templateD   *dict.Dictionary
	skeletonIDs []uint32
	varIDs      [][]uint32
}

func newClpStringColumn(nodeID int, tree *schematree.Tree, varD, templateD *dict.Dictionary) *clpStringColumn {
	return &clpStringColumn{nodeID: nodeID, typ: schematree.ClpString, tree: tree, varD: varD, templateD: templateD}
}

func newArrayColumn(nodeID int, tree *schematree.Tree, varD, arrayD *dict.Dictionary) *clpStringColumn {
	c := newClpStringColumn(nodeID, tree, varD, arrayD)
	c.typ = schematree.Array
	return c
}

func (c *clpStringColumn) Append(v value.Value) (int, error) {
	if v.Kind != value.Str && v.Kind != value.ArrayText {
		return 0, fmt.Errorf("clp-string column node %d: %w (got kind %d)", c.nodeID, clperr.ErrInvariantViolation, v.Kind)
	}
	skeleton, vars := tokenize(v.Str)
	skeletonID := c.templateD.Intern(skeleton)
	varIDs := make([]uint32, len(vars))
	for i, tok := range vars {
		varIDs[i] = c.varD.Intern(tok)
	}
	c.skeletonIDs = append(c.skeletonIDs, skeletonID)
	c.varIDs = append(c.varIDs, varIDs)
	c.tree.MarkValue(c.nodeID, stableHash(v.Str), v.Str)
	return 4 + 4*len(varIDs), nil
}

func (c *clpStringColumn) Store(w io.Writer) error {
	for i, sid := range c.skeletonIDs {
		if err := binary.Write(w, binary.LittleEndian, sid); err != nil {
			return fmt.Errorf("%w: clp-string column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
		ids := c.varIDs[i]
		if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
			return fmt.Errorf("%w: clp-string column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
		}
		for _, id := range ids {
			if err := binary.Write(w, binary.LittleEndian, id); err != nil {
				return fmt.Errorf("%w: clp-string column node %d: %v", clperr.ErrIoFailure, c.nodeID, err)
			}
		}
	}
	return nil
}

func (c *clpStringColumn) NodeID() int { return c.nodeID }
func (c *clpStringColumn) Kind() schematree.NodeType { return c.typ }
func (c *clpStringColumn) Rows() int { return len(c.skeletonIDs) }

// Detokenize re-expands a log-type or array skeleton against its variable
// list. Exported for the reader, which must invert the same tokenize
// format this column writes without duplicating the placeholder
// convention in a second package.
func Detokenize(skeleton string, vars []string) string {
	return detokenize(skeleton, vars)
}
