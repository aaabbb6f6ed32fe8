package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/schematree"
)

const rewritesFile = "rewrites"

// storeRewrites persists the exact []Rewrite this archive's Close()
// applied. The schema tree is shared across every archive in a run, and
// rewrite_by_frequency only ever folds a node while it is still
// CardinalityOne — a node an earlier archive folded can later flip to
// CardinalityMany once a later archive observes a second distinct value,
// at which point it is no longer collapsed but its stale VarValue child
// from the earlier fold is never removed. So "does this node currently
// have a VarValue child" is NOT a safe test for "was this column
// collapsed in archive X" — only this archive's own rewrite list is.
func (w *Writer) storeRewrites(rewrites []schematree.Rewrite) error {
	return w.writeCompressedFile(rewritesFile, func(enc io.Writer) error {
		if err := binary.Write(enc, binary.LittleEndian, uint32(len(rewrites))); err != nil {
			return err
		}
		for _, r := range rewrites {
			if err := binary.Write(enc, binary.LittleEndian, int32(r.OldID)); err != nil {
				return err
			}
			if err := binary.Write(enc, binary.LittleEndian, int32(r.NewID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// readRewrites loads the rewrite list stored by storeRewrites for one
// archive split, as old_id -> new_id (the VarValue node holding the
// collapsed constant).
func readRewrites(fs billy.Filesystem, splitDir string) (map[int]int, error) {
	path := fs.Join(splitDir, rewritesFile)
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()

	dec, err := newDecoder(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var count uint32
	if err := binary.Read(dec, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: read rewrite_count in %s: %v", clperr.ErrIoFailure, path, err)
	}
	out := make(map[int]int, count)
	for i := uint32(0); i < count; i++ {
		var oldID, newID int32
		if err := binary.Read(dec, binary.LittleEndian, &oldID); err != nil {
			return nil, fmt.Errorf("%w: read old_id in %s: %v", clperr.ErrIoFailure, path, err)
		}
		if err := binary.Read(dec, binary.LittleEndian, &newID); err != nil {
			return nil, fmt.Errorf("%w: read new_id in %s: %v", clperr.ErrIoFailure, path, err)
		}
		out[int(oldID)] = int(newID)
	}
	return out, nil
}
