// Package bip340 implements the tagged hash, and Schnorr signing and
// verification, of BIP-340. It is a thin adapter over
// github.com/btcsuite/btcd/btcec/v2/schnorr, the reference Go
// implementation of BIP-340, built on the same secp256k1 group this
// module already uses via internal/curve.
package bip340

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/dkgcore/chilldkg/internal/curve"
)

// TaggedHash computes the BIP-340 tagged hash of data under tag:
// SHA256(SHA256(tag) || SHA256(tag) || data...).
func TaggedHash(tag string, data ...[]byte) [32]byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign produces a 64-byte BIP-340 signature over msg (already a 32-byte
// digest, typically the output of TaggedHash) using secret scalar sk,
// with the given 32-byte aux_rand. A fixed all-zero aux_rand is sound
// per the BIP-340 security proof and gives deterministic signatures;
// callers that want randomized signing supply a fresh aux_rand instead.
func Sign(sk curve.Scalar, msg [32]byte, auxRand [32]byte) ([64]byte, error) {
	var out [64]byte
	skBytes := sk.Bytes()
	priv := secp256k1ScalarToPrivKey(skBytes)
	sig, err := schnorr.Sign(priv, msg[:], schnorr.CustomNonce(auxRand))
	if err != nil {
		return out, err
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks a 64-byte BIP-340 signature over msg against the x-only
// public key xonlyPub. It returns false (never panics) for a malformed
// signature or public key, so callers can treat it as a plain fail-closed
// boolean check.
func Verify(sig [64]byte, xonlyPub [32]byte, msg [32]byte) bool {
	pub, err := schnorr.ParsePubKey(xonlyPub[:])
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	return parsed.Verify(msg[:], pub)
}

func secp256k1ScalarToPrivKey(b [32]byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv
}
