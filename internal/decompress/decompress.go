// Package decompress provides the default chunk-decompression handlers the
// engine injects into the MCAP source (the bag source calls pierrec/lz4
// directly and takes no registry). Per spec.md §1 the concrete
// decompression libraries are an external collaborator — this package is
// the seam where a caller wires one in, with ready-made zstd/lz4
// implementations for convenience.
package decompress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Func decompresses compressed into a buffer of exactly decompressedSize
// bytes, keyed by algorithm name in a Registry.
type Func func(compressed []byte, decompressedSize uint64) ([]byte, error)

// Registry maps a compression algorithm name ("zstd", "lz4", "bz2", ...) to
// its handler. Lookups for an algorithm absent from the registry must
// surface as logmsg.ErrUnsupportedEncoding by the caller.
type Registry map[string]Func

// Zstd decompresses a zstd-compressed chunk using klauspost/compress/zstd,
// the same library the wider MCAP ecosystem (foxglove/mcap) links for chunk
// decompression.
func Zstd(compressed []byte, decompressedSize uint64) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress: zstd reader: %w", err)
	}
	defer dec.Close()
	out := make([]byte, 0, decompressedSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, dec); err != nil {
		return nil, fmt.Errorf("decompress: zstd copy: %w", err)
	}
	return buf.Bytes(), nil
}

// LZ4 decompresses an lz4-compressed chunk using pierrec/lz4/v4.
func LZ4(compressed []byte, decompressedSize uint64) ([]byte, error) {
	out := make([]byte, decompressedSize)
	n, err := lz4.UncompressBlock(compressed, out)
	if err != nil {
		r := lz4.NewReader(bytes.NewReader(compressed))
		var buf bytes.Buffer
		if _, err2 := io.Copy(&buf, r); err2 != nil {
			return nil, fmt.Errorf("decompress: lz4: %w", err)
		}
		return buf.Bytes(), nil
	}
	return out[:n], nil
}

// Default returns a registry with zstd (required by spec.md §6) and lz4
// (optional) wired in. bz2 is left for the caller to supply — no bzip2
// library appeared in the reference pack.
func Default() Registry {
	return Registry{
		"zstd": Zstd,
		"lz4":  LZ4,
	}
}
