package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm for snapshot filter payloads.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast with a modest ratio, good for hot catalogs.
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades speed for a better ratio, good for cold
	// storage. Sparse filter buffers compress very well.
	CompressionZSTD Compression = 2
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a name to a Compression value.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

// Payloads carry a 16-byte header so the stored form is self-describing:
// [uncompressedSize u64][compressedSize u64][data]. compressedSize 0
// means the data is stored raw, which also covers payloads the algorithm
// could not shrink. Sizes are u64 because filter buffers can exceed 4GiB.
const payloadHeaderSize = 16

// maxpayloadBytes caps the allocation a payload header can demand, so a
// corrupted size field cannot ask for an absurd buffer.
const maxPayloadBytes = 1 << 38

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compressPayload returns the payload in stored form. Incompressible
// data (ratio above 0.9) falls back to raw storage so decompression cost
// is never paid for nothing.
func compressPayload(data []byte, compression Compression) ([]byte, error) {
	var compressed []byte
	var err error

	switch compression {
	case CompressionNone:
		// Stored raw below.
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		compressed, err = compressZSTD(data)
	default:
		return nil, fmt.Errorf("unknown compression %d", compression)
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, payloadHeaderSize+len(data))
		binary.LittleEndian.PutUint64(result[0:], uint64(len(data)))
		binary.LittleEndian.PutUint64(result[8:], 0)
		copy(result[payloadHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, payloadHeaderSize+len(compressed))
	binary.LittleEndian.PutUint64(result[0:], uint64(len(data)))
	binary.LittleEndian.PutUint64(result[8:], uint64(len(compressed)))
	copy(result[payloadHeaderSize:], compressed)
	return result, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible.
		return nil, nil
	}
	return compressed[:n], nil
}

func compressZSTD(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)
	return enc.EncodeAll(data, nil), nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(data []byte, compression Compression) ([]byte, error) {
	if len(data) < payloadHeaderSize {
		return nil, errors.New("payload too small for header")
	}

	uncompressedSize := binary.LittleEndian.Uint64(data[0:])
	compressedSize := binary.LittleEndian.Uint64(data[8:])
	if uncompressedSize > maxPayloadBytes {
		return nil, fmt.Errorf("payload declares unreasonable size %d", uncompressedSize)
	}

	if compressedSize == 0 {
		if uint64(len(data)) < payloadHeaderSize+uncompressedSize {
			return nil, errors.New("payload data too small")
		}
		return data[payloadHeaderSize : payloadHeaderSize+uncompressedSize], nil
	}

	if uint64(len(data)) < payloadHeaderSize+compressedSize {
		return nil, errors.New("compressed payload data too small")
	}
	compressedData := data[payloadHeaderSize : payloadHeaderSize+compressedSize]

	switch compression {
	case CompressionLZ4:
		result := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(compressedData, result)
		if err != nil {
			return nil, err
		}
		if uint64(n) != uncompressedSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return result, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressedData, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, err
		}
		if uint64(len(decoded)) != uncompressedSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("payload compressed with unknown compression %d", compression)
	}
}
