package crypto

import "github.com/mosaicnetworks/tangle/src/trinary"

// Hash returns the HashLength-trit Curl digest of trits.
func Hash(trits trinary.Trits) trinary.Trits {
	curl := NewCurl()
	curl.Absorb(trits)
	out := make(trinary.Trits, HashLength)
	curl.Squeeze(out)
	return out
}

// HashFromTwoHashes returns the Curl digest of left absorbed before right.
func HashFromTwoHashes(left, right trinary.Trits) trinary.Trits {
	curl := NewCurl()
	curl.Absorb(left)
	curl.Absorb(right)
	out := make(trinary.Trits, HashLength)
	curl.Squeeze(out)
	return out
}
