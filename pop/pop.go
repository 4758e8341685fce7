// Package pop implements dealer proof-of-possession: a BIP-340 Schnorr
// signature by a dealer's secret coefficient a0 over a message binding the
// dealer's declared participant index, blocking rogue-key contributions
// where a malicious dealer picks A0 as a known offset of honest dealers'
// keys.
package pop

import (
	"encoding/binary"

	"github.com/dkgcore/chilldkg/internal/bip340"
	"github.com/dkgcore/chilldkg/internal/curve"
)

const tag = "pop message"

// Msg computes pop_msg(idx) = tagged_hash("pop message", be32(idx)).
func Msg(idx uint32) [32]byte {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], idx)
	return bip340.TaggedHash(tag, be[:])
}

// Prove signs Msg(idx) with secret coefficient a0, using auxRand as the
// BIP-340 auxiliary randomness. The zero value gives deterministic proofs;
// a caller may supply fresh randomness instead.
func Prove(a0 curve.Scalar, idx uint32, auxRand [32]byte) ([64]byte, error) {
	return bip340.Sign(a0, Msg(idx), auxRand)
}

// Verify checks proof sig against commitment-to-secret a0Commitment for
// declared index idx. It fails closed (returns false, never panics) if
// a0Commitment is the identity element.
func Verify(sig [64]byte, a0Commitment curve.Point, idx uint32) bool {
	if a0Commitment.IsInfinity() {
		return false
	}
	xonly, err := a0Commitment.XOnly()
	if err != nil {
		return false
	}
	return bip340.Verify(sig, xonly, Msg(idx))
}
