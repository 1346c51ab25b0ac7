package crypto

import (
	"fmt"

	"github.com/mosaicnetworks/tangle/src/trinary"
)

// One-time signature parameters.
const (
	NumberOfFragmentChunks = 27
	FragmentLength         = HashLength * NumberOfFragmentChunks
	NumberOfSecurityLevels = 3

	MinTryteValue = -13
	MaxTryteValue = 13

	// NormalizedFragmentLength is the number of normalized trytes signed by one
	// key fragment.
	NormalizedFragmentLength = HashLength / trinary.TritsPerTryte / NumberOfSecurityLevels
)

// Subseed derives the index-th subseed of seed.
func Subseed(seed trinary.Trits, index int) (trinary.Trits, error) {
	if index < 0 {
		return nil, fmt.Errorf("invalid subseed index: %d", index)
	}

	preimage := make(trinary.Trits, len(seed))
	copy(preimage, seed)
	for ; index > 0; index-- {
		for i := range preimage {
			preimage[i]++
			if preimage[i] > trinary.MaxTritValue {
				preimage[i] = trinary.MinTritValue
			} else {
				break
			}
		}
	}

	return Hash(preimage), nil
}

// Key squeezes numberOfFragments key fragments out of a subseed.
func Key(subseed trinary.Trits, numberOfFragments int) (trinary.Trits, error) {
	if len(subseed) != HashLength {
		return nil, fmt.Errorf("invalid subseed length: %d", len(subseed))
	}
	if numberOfFragments <= 0 {
		return nil, fmt.Errorf("invalid number of key fragments: %d", numberOfFragments)
	}

	key := make(trinary.Trits, FragmentLength*numberOfFragments)
	curl := NewCurl()
	curl.Absorb(subseed)
	curl.Squeeze(key)
	return key, nil
}

// Digests hashes every chunk of every key fragment 26 times and compresses
// each fragment into one digest.
func Digests(key trinary.Trits) (trinary.Trits, error) {
	if len(key) == 0 || len(key)%FragmentLength != 0 {
		return nil, fmt.Errorf("invalid key length: %d", len(key))
	}

	fragments := len(key) / FragmentLength
	digests := make(trinary.Trits, fragments*HashLength)
	for i := 0; i < fragments; i++ {
		buffer := make(trinary.Trits, FragmentLength)
		copy(buffer, key[i*FragmentLength:(i+1)*FragmentLength])
		for j := 0; j < NumberOfFragmentChunks; j++ {
			hashChunk(buffer[j*HashLength:(j+1)*HashLength], MaxTryteValue-MinTryteValue)
		}
		copy(digests[i*HashLength:], Hash(buffer))
	}
	return digests, nil
}

// Address compresses digests into an address.
func Address(digests trinary.Trits) (trinary.Trits, error) {
	if len(digests) == 0 || len(digests)%HashLength != 0 {
		return nil, fmt.Errorf("invalid digests length: %d", len(digests))
	}
	return Hash(digests), nil
}

// NormalizedBundle maps a bundle hash to 81 tryte values, adjusting each third
// so that its values sum to zero.
func NormalizedBundle(bundle trinary.Trits) ([]int, error) {
	if len(bundle) != HashLength {
		return nil, fmt.Errorf("invalid bundle length: %d", len(bundle))
	}

	normalized := make([]int, HashLength/trinary.TritsPerTryte)
	for i := 0; i < NumberOfSecurityLevels; i++ {
		lo, hi := i*NormalizedFragmentLength, (i+1)*NormalizedFragmentLength

		sum := 0
		for j := lo; j < hi; j++ {
			normalized[j] = int(bundle[j*3]) + int(bundle[j*3+1])*3 + int(bundle[j*3+2])*9
			sum += normalized[j]
		}

		for ; sum > 0; sum-- {
			for j := lo; j < hi; j++ {
				if normalized[j] > MinTryteValue {
					normalized[j]--
					break
				}
			}
		}
		for ; sum < 0; sum++ {
			for j := lo; j < hi; j++ {
				if normalized[j] < MaxTryteValue {
					normalized[j]++
					break
				}
			}
		}
	}
	return normalized, nil
}

// SignatureFragment signs a normalized bundle fragment with a key fragment.
func SignatureFragment(normalizedFragment []int, keyFragment trinary.Trits) (trinary.Trits, error) {
	if len(normalizedFragment) != NormalizedFragmentLength {
		return nil, fmt.Errorf("invalid normalized bundle fragment length: %d", len(normalizedFragment))
	}
	if len(keyFragment) != FragmentLength {
		return nil, fmt.Errorf("invalid key fragment length: %d", len(keyFragment))
	}

	signature := make(trinary.Trits, FragmentLength)
	copy(signature, keyFragment)
	for j := 0; j < NumberOfFragmentChunks; j++ {
		hashChunk(signature[j*HashLength:(j+1)*HashLength], MaxTryteValue-normalizedFragment[j])
	}
	return signature, nil
}

// Digest completes the hash chains of a signature fragment and compresses the
// result. For a genuine signature it equals the key fragment's digest.
func Digest(normalizedFragment []int, signatureFragment trinary.Trits) (trinary.Trits, error) {
	if len(normalizedFragment) != NormalizedFragmentLength {
		return nil, fmt.Errorf("invalid normalized bundle fragment length: %d", len(normalizedFragment))
	}
	if len(signatureFragment) != FragmentLength {
		return nil, fmt.Errorf("invalid signature fragment length: %d", len(signatureFragment))
	}

	buffer := make(trinary.Trits, FragmentLength)
	copy(buffer, signatureFragment)
	for j := 0; j < NumberOfFragmentChunks; j++ {
		hashChunk(buffer[j*HashLength:(j+1)*HashLength], normalizedFragment[j]-MinTryteValue)
	}
	return Hash(buffer), nil
}

func hashChunk(chunk trinary.Trits, times int) {
	curl := NewCurl()
	for ; times > 0; times-- {
		curl.Reset()
		curl.Absorb(chunk)
		curl.Squeeze(chunk)
	}
}
