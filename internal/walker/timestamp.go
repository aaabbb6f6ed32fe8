package walker

import "time"

// dateLayouts are tried in order when a string leaf at the configured
// timestamp path needs to be recognized as a parseable date rather than
// plain text. The first layout that matches wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDateString reports whether s parses under one of dateLayouts, and
// if so returns its millisecond epoch.
func parseDateString(s string) (epochMillis int64, ok bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// tsState tracks timestamp-path matching for a single record walk.
//
// Rather than a mutable may_match/longest_prefix pair threaded through
// pops and re-arms, confirmation of the path-so-far is carried as a plain
// recursion parameter (confirmedDepth, passed independently down each
// branch of the walk): a sibling field that diverges from the configured
// path only ever affects its own subtree's parameter value, never its
// siblings', so there is nothing to explicitly re-arm when the walker
// backs out of it. consumed is the one piece of state that must be
// shared and mutable: once a string, boolean or numeric leaf at the full
// configured depth has been visited, timestamp matching is off for the
// rest of the record.
type tsState struct {
	column   []string
	consumed bool
}

func newTsState(column []string) *tsState {
	return &tsState{column: column}
}

// keyMatches reports whether key, found at 1-indexed depth on a branch
// whose ancestors have all matched so far, extends the configured
// timestamp path. The caller only ever invokes this with depth ==
// confirmedDepth+1, so divergent siblings never affect each other: each
// recurses with its own confirmedDepth value, not a shared one.
func (s *tsState) keyMatches(depth int, key string) bool {
	if s.consumed || len(s.column) == 0 || depth > len(s.column) {
		return false
	}
	return key == s.column[depth-1]
}

// isFullMatch reports whether a leaf whose key matched (matched == true,
// from keyMatches) sits at the full configured path depth, i.e. is a
// timestamp candidate.
func (s *tsState) isFullMatch(depth int, matched bool) bool {
	return matched && depth == len(s.column)
}

// disable turns off timestamp matching for the rest of the record. Called
// once a string, boolean or numeric leaf at full depth has been visited,
// regardless of whether it qualified as a timestamp value; null, array
// and object values at that depth do not call it.
func (s *tsState) disable() {
	s.consumed = true
}
