package crypto

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// derivationTag domain-separates custody derivations from every other use of
// keccak256 in the protocol. Changing it invalidates all derived addresses.
const derivationTag = "paystream/derive/v1"

// ErrNoDerivableAddress is returned when no salt in [0, 255] yields a keyless
// address for the supplied seeds. The probability of hitting this is
// negligible; the error exists so callers never loop forever.
var ErrNoDerivableAddress = errors.New("crypto: no derivable address for seeds")

// DeriveAddress computes the canonical keyless custody address for a label and
// an ordered set of seed components. The salt (bump) walks downward from 255
// and the first candidate digest that cannot be interpreted as a secp256k1
// point is accepted, guaranteeing that no private key exists whose public key
// maps to the returned address. Re-deriving with the same inputs always
// reproduces the same (address, salt) pair.
func DeriveAddress(label string, components ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		digest := derivationDigest(label, uint8(bump), components)
		if isCurvePoint(digest) {
			continue
		}
		return NewAddress(VaultPrefix, digest[12:]), uint8(bump), nil
	}
	return Address{}, 0, ErrNoDerivableAddress
}

// VerifyDerived reports whether addr is the address derived from (label,
// components) under the recorded salt. The check recomputes the digest and
// re-asserts that it lies off the curve, so a forged salt cannot smuggle a
// keyed address through verification.
func VerifyDerived(addr [20]byte, label string, bump uint8, components ...[]byte) bool {
	digest := derivationDigest(label, bump, components)
	if isCurvePoint(digest) {
		return false
	}
	var candidate [20]byte
	copy(candidate[:], digest[12:])
	return candidate == addr
}

// derivationDigest hashes the seed layout with explicit length prefixes so
// distinct component tuples can never collide by concatenation.
func derivationDigest(label string, bump uint8, components [][]byte) []byte {
	var lenBuf [4]byte
	buf := make([]byte, 0, 64)
	buf = append(buf, derivationTag...)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(label)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, label...)
	for _, component := range components {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(component)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, component...)
	}
	buf = append(buf, bump)
	return ethcrypto.Keccak256(buf)
}

// isCurvePoint reports whether the digest is a valid x coordinate on
// secp256k1. Candidates that decompress successfully are rejected by the
// deriver because some private key could in principle control them.
func isCurvePoint(digest []byte) bool {
	compressed := make([]byte, 33)
	compressed[0] = 0x02
	copy(compressed[1:], digest)
	_, err := ethcrypto.DecompressPubkey(compressed)
	return err == nil
}
