package archive

import (
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zstd"

	"github.com/clpstructured/clps/internal/clperr"
)

// newEncoder wraps w with a zstd compressor at the given CLI-style level,
// mapped through zstd.EncoderLevelFromZstd (levels below 3, including 0,
// select the fastest encoder setting).
// This is the "compressor" every Store method in schematree/schemaset/
// dict/column writes through.
func newEncoder(w io.Writer, level int) (*zstd.Encoder, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level))}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: open zstd encoder: %v", clperr.ErrIoFailure, err)
	}
	return enc, nil
}

// newDecoder wraps r with a zstd decompressor.
func newDecoder(r io.Reader) (*zstd.Decoder, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open zstd decoder: %v", clperr.ErrIoFailure, err)
	}
	return dec, nil
}

// writeCompressed opens path under fs and runs store through a zstd
// encoder at level, the shared shape behind every file this package
// writes except the column files: the global state (schema tree,
// schema-set map, global timestamp dict) and each split's local
// dictionaries, metadata and rewrite list.
func writeCompressed(fs billy.Filesystem, path string, level int, store func(io.Writer) error) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()

	enc, err := newEncoder(f, level)
	if err != nil {
		return err
	}
	defer enc.Close()

	if err := store(enc); err != nil {
		return fmt.Errorf("%w: write %s: %v", clperr.ErrIoFailure, path, err)
	}
	return nil
}

// readCompressed opens path under fs, runs it through a zstd decoder, and
// hands the stream to load.
func readCompressed[T any](fs billy.Filesystem, path string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := fs.Open(path)
	if err != nil {
		return zero, fmt.Errorf("%w: open %s: %v", clperr.ErrIoFailure, path, err)
	}
	defer f.Close()

	dec, err := newDecoder(f)
	if err != nil {
		return zero, err
	}
	defer dec.Close()

	v, err := load(dec)
	if err != nil {
		return zero, fmt.Errorf("%w: decode %s: %v", clperr.ErrIoFailure, path, err)
	}
	return v, nil
}
