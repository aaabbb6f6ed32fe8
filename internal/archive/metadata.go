package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"

	"github.com/clpstructured/clps/internal/clperr"
	"github.com/clpstructured/clps/internal/dict"
	"github.com/clpstructured/clps/internal/schemaset"
	"github.com/clpstructured/clps/internal/schematree"
)

const (
	schemaTreeFile = "schema_tree"
	schemaMapFile  = "schema_map"
	globalTSFile   = "timestamp.dict"
	metadataFile   = "metadata"
)

// Metadata is ArchiveWriter::close()'s per-archive summary record
// (SPEC_FULL §4): row count plus the timestamp range observed, if any
// timestamp-column leaf was captured during this archive's lifetime.
type Metadata struct {
	RowCount     int64
	MinTS        int64
	MaxTS        int64
	HasTimestamp bool
}

// storeMetadata writes this archive's metadata file, compressed with the
// same framing the schema-tree file uses: a handful of fixed-width
// fields, no length prefixes needed since the shape is closed.
func (w *Writer) storeMetadata() error {
	m := Metadata{RowCount: w.rows, MinTS: w.minTS, MaxTS: w.maxTS, HasTimestamp: w.hasTimestamp}
	return w.writeCompressedFile(metadataFile, m.store)
}

func (m Metadata) store(enc io.Writer) error {
	for _, field := range []int64{m.RowCount, m.MinTS, m.MaxTS} {
		if err := binary.Write(enc, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	var hasTS uint8
	if m.HasTimestamp {
		hasTS = 1
	}
	return binary.Write(enc, binary.LittleEndian, hasTS)
}

// ReadMetadata loads the metadata file from an archive split directory.
func ReadMetadata(fs billy.Filesystem, splitDir string) (Metadata, error) {
	path := fs.Join(splitDir, metadataFile)
	f, err := fs.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: open %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()

	dec, err := newDecoder(f)
	if err != nil {
		return Metadata{}, err
	}
	defer dec.Close()

	var m Metadata
	var hasTS uint8
	for _, field := range []*int64{&m.RowCount, &m.MinTS, &m.MaxTS} {
		if err := binary.Read(dec, binary.LittleEndian, field); err != nil {
			return Metadata{}, fmt.Errorf("%w: read metadata field in %s: %v", clperr.ErrIoFailure, path, err)
		}
	}
	if err := binary.Read(dec, binary.LittleEndian, &hasTS); err != nil {
		return Metadata{}, fmt.Errorf("%w: read has_timestamp in %s: %v", clperr.ErrIoFailure, path, err)
	}
	m.HasTimestamp = hasTS != 0
	return m, nil
}

// StoreGlobalState persists the process-global schema tree, schema-set
// map, and timestamp dictionary directly under baseDir (not under any
// single split's directory), exactly once, after the last archive in an
// ingestion run has closed. The four per-split dictionary snapshots
// written by Writer.Close are local copies; this timestamp.dict is the
// canonical global one spec.md §6 calls out separately.
func StoreGlobalState(fs billy.Filesystem, baseDir string, tree *schematree.Tree, schemaMap *schemaset.Map, tsDict *dict.TimestampDictionary, level int) error {
	if err := writeCompressed(fs, fs.Join(baseDir, schemaTreeFile), level, tree.Store); err != nil {
		return err
	}
	if err := writeCompressed(fs, fs.Join(baseDir, schemaMapFile), level, schemaMap.Store); err != nil {
		return err
	}
	if err := writeCompressed(fs, fs.Join(baseDir, globalTSFile), level, tsDict.Store); err != nil {
		return err
	}
	return nil
}

// LoadGlobalState reconstructs the schema tree and schema-set map written
// by StoreGlobalState, for use by a Reader.
func LoadGlobalState(fs billy.Filesystem, baseDir string) (*schematree.Tree, *schemaset.Map, error) {
	tree, err := readCompressed(fs, fs.Join(baseDir, schemaTreeFile), schematree.Load)
	if err != nil {
		return nil, nil, err
	}
	schemaMap, err := readCompressed(fs, fs.Join(baseDir, schemaMapFile), schemaset.Load)
	if err != nil {
		return nil, nil, err
	}
	return tree, schemaMap, nil
}
