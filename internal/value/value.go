// Package value defines the tagged scalar value ParsedMessage carries
// between the record walker and the column writers.
package value

import "fmt"

// Kind tags which field of Value is populated.
type Kind uint8

const (
	I64 Kind = iota
	F64
	Bool
	Str
	ArrayText
	DictID
	Null
)

// Value is a heterogeneous scalar produced by the record walker. Column
// writers accept only the Kind they expect and fail with
// clperr.ErrInvariantViolation on mismatch.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	Bool bool
	Str  string // used by Str and ArrayText
}

func Int64(v int64) Value      { return Value{Kind: I64, I64: v} }
func Float64(v float64) Value  { return Value{Kind: F64, F64: v} }
func Boolean(v bool) Value     { return Value{Kind: Bool, Bool: v} }
func String(v string) Value    { return Value{Kind: Str, Str: v} }
func ArrayBody(v string) Value { return Value{Kind: ArrayText, Str: v} }
func Nil() Value               { return Value{Kind: Null} }

func (v Value) String() string {
	switch v.Kind {
	case I64:
		return fmt.Sprintf("%d", v.I64)
	case F64:
		return fmt.Sprintf("%v", v.F64)
	case Bool:
		return fmt.Sprintf("%v", v.Bool)
	case Str, ArrayText:
		return v.Str
	case Null:
		return "null"
	default:
		return "<value>"
	}
}
