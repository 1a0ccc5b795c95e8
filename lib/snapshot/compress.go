// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a snapshot body.
type Compression uint8

const (
	// CompressionNone stores the CBOR body as is.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 block compression. Fastest to load.
	CompressionLZ4 Compression = 1

	// CompressionZstd uses zstd at the default level. Depot listings
	// and text content compress well, so this is the default.
	CompressionZstd Compression = 2
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown snapshot compression %q (want none, lz4 or zstd)", name)
	}
}

// compress returns the body compressed with the requested algorithm
// and the algorithm actually used. Bodies that do not shrink are
// stored uncompressed.
func compress(data []byte, requested Compression) (Compression, []byte, error) {
	switch requested {
	case CompressionNone:
		return CompressionNone, data, nil

	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return CompressionNone, data, nil
		}
		return CompressionLZ4, destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return CompressionNone, data, nil
		}
		return CompressionZstd, compressed, nil

	default:
		return 0, nil, fmt.Errorf("unsupported snapshot compression %d", uint8(requested))
	}
}

// decompress reverses compress. The result must be exactly size bytes.
func decompress(body []byte, algorithm Compression, size uint64) ([]byte, error) {
	if size > maxBodySize {
		return nil, fmt.Errorf("snapshot body of %d bytes exceeds the %d byte limit", size, uint64(maxBodySize))
	}

	switch algorithm {
	case CompressionNone:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("uncompressed body: size %d does not match header %d", len(body), size)
		}
		return body, nil

	case CompressionLZ4:
		if size > maxLZ4Ratio*uint64(len(body))+64 {
			return nil, fmt.Errorf("lz4 decompress: %d bytes cannot expand to %d", len(body), size)
		}
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil

	case CompressionZstd:
		var header zstd.Header
		if err := header.Decode(body); err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if header.HasFCS && header.FrameContentSize != size {
			return nil, fmt.Errorf("zstd decompress: frame declares %d bytes, expected %d", header.FrameContentSize, size)
		}
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, min(size, zstdInitialCapacity)))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(result)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported snapshot compression %d", uint8(algorithm))
	}
}

const (
	// maxLZ4Ratio is the largest expansion an LZ4 block can encode.
	maxLZ4Ratio = 256

	// zstdInitialCapacity caps the output buffer allocated before any
	// zstd block has been decoded.
	zstdInitialCapacity = 64 << 20
)

// zstd.Encoder and zstd.Decoder are safe for concurrent use of
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = newZstdDecoder(maxBodySize)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// newZstdDecoder returns a decoder that refuses to produce more than
// maxMemory bytes of output.
func newZstdDecoder(maxMemory uint64) (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxMemory))
}
