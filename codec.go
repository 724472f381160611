package elevationmap

import (
	"encoding/binary"
	"fmt"
	"math"
)

// A Precision is the number of bits used to store one sample in an image
// encoded tile.
type Precision int

const (
	// Precision8 stores samples as 8-bit grayscale covering -1000m to +9000m
	// in steps of about 39m.
	Precision8 Precision = 8

	// Precision16 stores samples as 16-bit grayscale in whole meters offset
	// by 1000m.
	Precision16 Precision = 16

	// Precision24 stores samples as 24-bit RGB in centimeters offset by 1000m
	// and shifted left by four bits.
	Precision24 Precision = 24
)

const (
	elevationOffset  = 1000
	precision8Span   = 10000
	precision24Shift = 4
	precision24Max   = 1<<(24-precision24Shift) - 1
	raw16Offset      = 32768
)

// Valid returns whether p is a known precision.
func (p Precision) Valid() bool {
	switch p {
	case Precision8, Precision16, Precision24:
		return true
	default:
		return false
	}
}

func (p Precision) String() string {
	return fmt.Sprintf("precision-%d", int(p))
}

// EncodeSample returns the stored representation of value at precision p.
// Values outside the usable range of p are clamped.
func EncodeSample(p Precision, value float64) (uint32, error) {
	switch p {
	case Precision8:
		return uint32(clamp(roundHalfUp((value+elevationOffset)/precision8Span*255), 0, math.MaxUint8)), nil
	case Precision16:
		return uint32(clamp(roundHalfUp(value+elevationOffset), 0, math.MaxUint16)), nil
	case Precision24:
		return uint32(clamp(roundHalfUp((value+elevationOffset)*100), 0, precision24Max)) << precision24Shift, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidArgument, p)
	}
}

// DecodeSample returns the elevation represented by stored at precision p.
func DecodeSample(p Precision, stored uint32) (float64, error) {
	switch p {
	case Precision8:
		return float64(stored)/255*precision8Span - elevationOffset, nil
	case Precision16:
		return float64(stored) - elevationOffset, nil
	case Precision24:
		return float64(stored>>precision24Shift)/100 - elevationOffset, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidArgument, p)
	}
}

// EncodeRaw16 returns the raw 16-bit representation of value, rounded to whole
// meters and clamped to ±32767m.
func EncodeRaw16(value float64) uint16 {
	return uint16(clamp(roundHalfUp(value+raw16Offset), 0, math.MaxUint16))
}

// DecodeRaw16 returns the elevation represented by the raw 16-bit value
// stored.
func DecodeRaw16(stored uint16) float64 {
	return float64(int(stored) - raw16Offset)
}

// encodeRaw16Samples encodes samples as little-endian raw 16-bit values.
func encodeRaw16Samples(samples []float64) []byte {
	data := make([]byte, 2*len(samples))
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(data[2*i:2*i+2], EncodeRaw16(sample))
	}
	return data
}

// decodeRaw16Samples decodes little-endian raw 16-bit values into n samples.
func decodeRaw16Samples(data []byte, n int) ([]float64, error) {
	if len(data) != 2*n {
		return nil, fmt.Errorf("%w: raw16 tile has %d bytes, expected %d", ErrFormat, len(data), 2*n)
	}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = DecodeRaw16(binary.LittleEndian.Uint16(data[2*i : 2*i+2]))
	}
	return samples, nil
}
