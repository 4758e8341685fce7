// Package encshare implements an encrypted share transport: a one-time
// pad per (dealer, recipient) pair derived from a static ECDH exchange,
// plus the aggregate form that lets a coordinator forward a single summed
// ciphertext per recipient instead of n^2 individual ciphertexts.
package encshare

import (
	"encoding/binary"

	"github.com/dkgcore/chilldkg/internal/bip340"
	"github.com/dkgcore/chilldkg/internal/curve"
)

const tag = "ecdh"

// ECDH computes the shared point deckey*enckey. Both parties compute the
// same point from their respective (own secret, peer public) pair since
// the group is commutative: deckeyD*enckeyR == deckeyD*(deckeyR*G) ==
// deckeyR*(deckeyD*G) == deckeyR*enckeyD.
func ECDH(deckey curve.Scalar, enckeyPeer curve.Point) curve.Point {
	return enckeyPeer.ScalarMul(deckey)
}

// Pad derives the one-time pad scalar for recipient r from a shared ECDH
// point, binding r into the hash so a dealer sending to multiple
// recipients cannot reuse the same pad value.
func Pad(shared curve.Point, r uint32) curve.Scalar {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], r)
	sb := shared.Bytes()
	h := bip340.TaggedHash(tag, sb[:], be[:])
	s, _ := curve.ScalarFromBytes(h[:])
	return s
}

// Encrypt returns dealer d's ciphertext to recipient r: share + pad, in
// the scalar field.
func Encrypt(share curve.Scalar, deckeyD curve.Scalar, enckeyR curve.Point, r uint32) curve.Scalar {
	pad := Pad(ECDH(deckeyD, enckeyR), r)
	return share.Add(pad)
}

// DecryptSum recovers recipient i's share sum from the coordinator-
// forwarded aggregate ciphertext encSum = Σ_d c_{d,i}, by subtracting
// every dealer's pad: share_sum_i = enc_sum_i − Σ_d H(ecdh(deckey_i,
// enckey_d) ‖ be32(i)).
func DecryptSum(encSum curve.Scalar, deckeyI curve.Scalar, enckeysD []curve.Point, i uint32) curve.Scalar {
	sum := encSum
	for _, enckeyD := range enckeysD {
		pad := Pad(ECDH(deckeyI, enckeyD), i)
		sum = sum.Add(pad.Negate())
	}
	return sum
}
