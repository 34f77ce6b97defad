// Package phash compares perceptual video hashes. Hashes are hex-encoded bit
// strings produced by an external tool; this package only measures distance
// between them and converts distance into a match confidence.
package phash

import (
	"fmt"
	"math/bits"
	"strings"

	"scenematch/internal/services"
)

// Fingerprint pairs a hash value with the algorithm that produced it.
// Distances are only meaningful within one algorithm family.
type Fingerprint struct {
	Hash      string
	Algorithm string
}

// CompatibleWith reports whether two fingerprints can be compared.
func (f Fingerprint) CompatibleWith(other Fingerprint) bool {
	if !strings.EqualFold(strings.TrimSpace(f.Algorithm), strings.TrimSpace(other.Algorithm)) {
		return false
	}
	return len(f.Hash) == len(other.Hash) && len(f.Hash) > 0
}

// Distance computes the Hamming distance between two equal-length hex-encoded
// hashes. Returns services.ErrIncompatibleHash when the strings differ in
// length or contain non-hex characters.
func Distance(a, b string) (int, error) {
	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if len(a) == 0 || len(b) == 0 {
		return 0, services.Wrap(services.ErrIncompatibleHash, "phash", "distance", "empty hash", nil)
	}
	if len(a) != len(b) {
		return 0, services.Wrap(services.ErrIncompatibleHash, "phash", "distance",
			fmt.Sprintf("length mismatch: %d vs %d", len(a), len(b)), nil)
	}

	distance := 0
	for i := 0; i < len(a); i++ {
		na, err := hexNibble(a[i])
		if err != nil {
			return 0, err
		}
		nb, err := hexNibble(b[i])
		if err != nil {
			return 0, err
		}
		distance += bits.OnesCount8(na ^ nb)
	}
	return distance, nil
}

// Confidence converts a Hamming distance into a [0,1] confidence score for the
// given acceptance threshold. Exact matches score 1.0, anything beyond the
// threshold scores 0.0, and values in between decay linearly with half the
// slope so that a distance right at the threshold still lands near 0.5.
func Confidence(distance, threshold int) float64 {
	if distance < 0 || threshold <= 0 {
		return 0.0
	}
	if distance > threshold {
		return 0.0
	}
	if distance == 0 {
		return 1.0
	}
	confidence := 1.0 - float64(distance)/(float64(threshold)*2)
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

func hexNibble(c byte) (uint8, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, services.Wrap(services.ErrIncompatibleHash, "phash", "distance",
			fmt.Sprintf("invalid hex character %q", c), nil)
	}
}
