package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vectors are persisted as little-endian float32 blobs so they round-trip
// through SQLite without a text conversion.

func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// encodeMatrix flattens positionally aligned token vectors into one blob.
// All rows must share the same dimensionality.
func encodeMatrix(rows [][]float32) ([]byte, int, error) {
	if len(rows) == 0 {
		return nil, 0, nil
	}
	dim := len(rows[0])
	buf := make([]byte, 0, 4*dim*len(rows))
	for i, row := range rows {
		if len(row) != dim {
			return nil, 0, fmt.Errorf("token vector %d has dimension %d, expected %d", i, len(row), dim)
		}
		buf = append(buf, encodeVector(row)...)
	}
	return buf, dim, nil
}

func decodeMatrix(buf []byte, dim int) [][]float32 {
	if len(buf) == 0 || dim <= 0 {
		return nil
	}
	rowBytes := 4 * dim
	rows := make([][]float32, 0, len(buf)/rowBytes)
	for off := 0; off+rowBytes <= len(buf); off += rowBytes {
		rows = append(rows, decodeVector(buf[off:off+rowBytes]))
	}
	return rows
}
