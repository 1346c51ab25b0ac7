package trinary

import (
	"fmt"
	"strings"
)

// Radix and trit bounds of balanced ternary.
const (
	Radix        = 3
	MaxTritValue = 1
	MinTritValue = -1

	// TritsPerByte is the number of trits packed into one byte.
	TritsPerByte = 5
	// TritsPerTryte is the number of trits in one tryte.
	TritsPerTryte = 3
)

// TryteAlphabet maps tryte values 0..13 and -13..-1 to characters.
const TryteAlphabet = "9ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Trits is a slice of balanced-ternary digits, each in {-1, 0, 1}.
type Trits []int8

var (
	byteToTrits  [243][TritsPerByte]int8
	tryteToTrits [27][TritsPerTryte]int8
)

func init() {
	var trits [TritsPerByte]int8
	for i := 0; i < 243; i++ {
		byteToTrits[i] = trits
		increment(trits[:])
	}

	var tryte [TritsPerTryte]int8
	for i := 0; i < 27; i++ {
		tryteToTrits[i] = tryte
		increment(tryte[:])
	}
}

func increment(trits []int8) {
	for i := range trits {
		trits[i]++
		if trits[i] > MaxTritValue {
			trits[i] = MinTritValue
		} else {
			break
		}
	}
}

// Bytes packs trits five at a time, least significant trit first. The result
// has ceil(len(trits)/5) bytes; each byte holds a signed value in -121..121.
func Bytes(trits Trits) []byte {
	res := make([]byte, (len(trits)+TritsPerByte-1)/TritsPerByte)
	for i := range res {
		n := len(trits) - i*TritsPerByte
		if n > TritsPerByte {
			n = TritsPerByte
		}
		value := 0
		for j := n - 1; j >= 0; j-- {
			value = value*Radix + int(trits[i*TritsPerByte+j])
		}
		res[i] = byte(int8(value))
	}
	return res
}

// GetTrits unpacks bytes into dst until dst is full.
func GetTrits(bytes []byte, dst Trits) {
	offset := 0
	for i := 0; i < len(bytes) && offset < len(dst); i++ {
		v := int(int8(bytes[i]))
		if v < 0 {
			v += 243
		}
		n := len(dst) - offset
		if n > TritsPerByte {
			n = TritsPerByte
		}
		copy(dst[offset:offset+n], byteToTrits[v][:n])
		offset += n
	}
}

// BytesToTrits unpacks the given number of trits from bytes.
func BytesToTrits(bytes []byte, size int) Trits {
	trits := make(Trits, size)
	GetTrits(bytes, trits)
	return trits
}

// TrytesToTrits converts a tryte string into trits. It fails on any character
// outside TryteAlphabet.
func TrytesToTrits(trytes string) (Trits, error) {
	trits := make(Trits, len(trytes)*TritsPerTryte)
	for i := 0; i < len(trytes); i++ {
		index := strings.IndexByte(TryteAlphabet, trytes[i])
		if index < 0 {
			return nil, fmt.Errorf("invalid tryte %q at position %d", trytes[i], i)
		}
		copy(trits[i*TritsPerTryte:], tryteToTrits[index][:])
	}
	return trits, nil
}

// MustTrytesToTrits is TrytesToTrits for trusted constants.
func MustTrytesToTrits(trytes string) Trits {
	trits, err := TrytesToTrits(trytes)
	if err != nil {
		panic(err)
	}
	return trits
}

// TritsToTrytes converts trits into a tryte string. A trailing partial tryte is
// padded with zero trits.
func TritsToTrytes(trits Trits) string {
	var sb strings.Builder
	n := (len(trits) + TritsPerTryte - 1) / TritsPerTryte
	sb.Grow(n)
	for i := 0; i < n; i++ {
		j := 0
		for k := TritsPerTryte - 1; k >= 0; k-- {
			j *= Radix
			if idx := i*TritsPerTryte + k; idx < len(trits) {
				j += int(trits[idx])
			}
		}
		if j < 0 {
			j += len(TryteAlphabet)
		}
		sb.WriteByte(TryteAlphabet[j])
	}
	return sb.String()
}

// Int64 decodes trits as a little-endian balanced-ternary integer.
func Int64(trits Trits) int64 {
	var value int64
	for i := len(trits) - 1; i >= 0; i-- {
		value = value*Radix + int64(trits[i])
	}
	return value
}

// PutInt64 encodes value into dst as a little-endian balanced-ternary integer.
// Digits that do not fit are dropped.
func PutInt64(value int64, dst Trits) {
	abs := value
	if abs < 0 {
		abs = -abs
	}
	for i := range dst {
		remainder := int8(abs % Radix)
		abs /= Radix
		if remainder > MaxTritValue {
			remainder = MinTritValue
			abs++
		}
		dst[i] = remainder
	}
	if value < 0 {
		for i := range dst {
			dst[i] = -dst[i]
		}
	}
}

// IsZero reports whether every trit is zero.
func IsZero(trits Trits) bool {
	for _, t := range trits {
		if t != 0 {
			return false
		}
	}
	return true
}
