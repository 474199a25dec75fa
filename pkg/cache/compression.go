package cache

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Stored value prefixes. Every value this cache writes carries one of these,
// so the read path can tell the two formats apart. Values without a prefix
// are treated as plain JSON written by the legacy cache and parsed as-is.
var (
	prefixRaw        = []byte("raw:")
	prefixCompressed = []byte("compressed:")
)

// maxDecompressedSize bounds decompression output to guard against
// decompression bombs from a shared or compromised store.
const maxDecompressedSize = 100 * 1024 * 1024

// compressData serializes a payload and compresses it when the serialized
// form exceeds threshold bytes. It returns the wire bytes, whether
// compression was applied, the serialized (pre-compression) size, and the
// time spent compressing — serialization time is excluded.
func compressData(payload map[string]interface{}, threshold, level int) ([]byte, bool, int, time.Duration, error) {
	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil, false, 0, 0, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}

	if len(serialized) <= threshold {
		out := make([]byte, 0, len(prefixRaw)+len(serialized))
		out = append(out, prefixRaw...)
		out = append(out, serialized...)
		return out, false, len(serialized), 0, nil
	}

	var buf bytes.Buffer
	buf.Write(prefixCompressed)

	compressStart := time.Now()
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, false, 0, 0, fmt.Errorf("compression setup failed: %w", err)
	}
	if _, err := zw.Write(serialized); err != nil {
		_ = zw.Close()
		return nil, false, 0, 0, fmt.Errorf("compression write failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, 0, 0, fmt.Errorf("compression close failed: %w", err)
	}

	return buf.Bytes(), true, len(serialized), time.Since(compressStart), nil
}

// decompressData reverses compressData. It also accepts prefix-less plain
// JSON values so entries written by the legacy cache remain readable.
func decompressData(data []byte) (map[string]interface{}, error) {
	switch {
	case bytes.HasPrefix(data, prefixCompressed):
		zr, err := zlib.NewReader(bytes.NewReader(data[len(prefixCompressed):]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
		}
		defer func() {
			_ = zr.Close()
		}()

		serialized, err := io.ReadAll(io.LimitReader(zr, maxDecompressedSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
		}
		return unmarshalPayload(serialized)

	case bytes.HasPrefix(data, prefixRaw):
		return unmarshalPayload(data[len(prefixRaw):])

	default:
		// Legacy format: plain JSON bytes with no prefix.
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(serialized []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(serialized, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return payload, nil
}
