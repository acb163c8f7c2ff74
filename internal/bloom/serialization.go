package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Serialized layout, before compression of the bit array:
//
//	8 bytes  numBits   (uint64, little-endian)
//	8 bytes  numHashes (uint64, little-endian)
//	8 bytes  count     (uint64, little-endian)
//	...      snappy(bit array words, little-endian)
const headerSize = 24

// Marshal serializes the filter with a snappy-compressed bit array.
func (f *Filter) Marshal() []byte {
	bitData := make([]byte, len(f.bits)*8)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(bitData[i*8:(i+1)*8], word)
	}
	compressed := snappy.Encode(nil, bitData)

	buf := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:24], f.count)
	copy(buf[headerSize:], compressed)
	return buf
}

// MarshalBase64 serializes the filter for embedding in JSON metadata.
func (f *Filter) MarshalBase64() string {
	return base64.StdEncoding.EncodeToString(f.Marshal())
}

// Unmarshal reconstructs a filter from Marshal output.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < headerSize {
		return nil, errors.New("bloom: serialized data too short")
	}
	numBits := binary.LittleEndian.Uint64(data[0:8])
	numHashes := binary.LittleEndian.Uint64(data[8:16])
	count := binary.LittleEndian.Uint64(data[16:24])
	if numBits == 0 || numHashes == 0 {
		return nil, errors.New("bloom: invalid filter parameters")
	}

	bitData, err := snappy.Decode(nil, data[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("bloom: decompress bit array: %w", err)
	}
	numWords := (numBits + 63) / 64
	if uint64(len(bitData)) < numWords*8 {
		return nil, fmt.Errorf("bloom: bit array has %d bytes, want %d", len(bitData), numWords*8)
	}
	bits := make([]uint64, numWords)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(bitData[i*8 : (i+1)*8])
	}
	return &Filter{bits: bits, numBits: numBits, numHashes: numHashes, count: count}, nil
}

// UnmarshalBase64 reconstructs a filter from MarshalBase64 output.
func UnmarshalBase64(s string) (*Filter, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bloom: invalid base64 data: %w", err)
	}
	return Unmarshal(data)
}
