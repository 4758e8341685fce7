// Package encpedpop drives SimplPedPop (simplpedpop) over shares
// encrypted by encshare, removing the need for a private point-to-point
// channel between dealer and recipient. Everything else — VSS, PoP
// checking, aggregation, η — is identical to SimplPedPop and is
// delegated there.
package encpedpop

import (
	"github.com/dkgcore/chilldkg/encshare"
	"github.com/dkgcore/chilldkg/internal/curve"
	"github.com/dkgcore/chilldkg/internal/dkgerr"
	"github.com/dkgcore/chilldkg/simplpedpop"
)

// DeriveKeys derives a participant's static encryption keypair
// (deckey, enckey=deckey*G) from its session seed.
func DeriveKeys(seed []byte) (curve.Scalar, curve.Point) {
	raw := curve.KDF(seed, "deckey")
	deckey, _ := curve.ScalarFromBytes(raw[:])
	enckey := curve.ScalarBaseMul(deckey)
	return deckey, enckey
}

// DealerMessage is the round-1 message a dealer sends the coordinator:
// its SimplPedPop dealer message plus one ciphertext per recipient.
type DealerMessage struct {
	Inner     simplpedpop.DealerMessage
	EncShares []curve.Scalar
}

// DealerStep runs the dealer half of EncPedPop: SimplPedPop's DealerStep
// plus, for each recipient, a one-time-pad ciphertext of that recipient's
// share under the dealer's static deckey and the recipient's published
// enckey.
func DealerStep(seed []byte, t, n, idx int, enckeys []curve.Point) (simplpedpop.SignerState, DealerMessage, error) {
	if len(enckeys) != n {
		return simplpedpop.SignerState{}, DealerMessage{}, dkgerr.NewUnattributed(
			dkgerr.KindInvalidSize, "expected %d enckeys, got %d", n, len(enckeys))
	}
	deckey, _ := DeriveKeys(seed)

	state, innerMsg, shares, err := simplpedpop.DealerStep(seed, t, n, idx)
	if err != nil {
		return simplpedpop.SignerState{}, DealerMessage{}, err
	}

	encShares := make([]curve.Scalar, n)
	for r := 0; r < n; r++ {
		encShares[r] = encshare.Encrypt(shares[r], deckey, enckeys[r], uint32(r))
		shares[r].Zeroize()
	}

	return state, DealerMessage{Inner: innerMsg, EncShares: encShares}, nil
}

// Bytes serializes m as its inner SimplPedPop dealer message followed by
// one 32-byte ciphertext per recipient.
func (m DealerMessage) Bytes() []byte {
	out := m.Inner.Bytes()
	for _, s := range m.EncShares {
		b := s.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// ParseDealerMessage decodes a wire-format dealer message sent by
// dealerIdx for a session with threshold t and n participants. A
// truncated or overlong ciphertext section is an Attributed
// DecryptionFailure naming dealerIdx, since the sender is the only
// plausible source of a malformed ciphertext at this boundary.
func ParseDealerMessage(b []byte, t, n, dealerIdx int) (DealerMessage, error) {
	innerLen := t*33 + 64
	if len(b) < innerLen {
		return DealerMessage{}, dkgerr.NewAttributed(dkgerr.KindDecryptionFailure, dealerIdx,
			"dealer message is shorter than its commitment and proof of possession")
	}
	inner, err := simplpedpop.ParseDealerMessage(b[:innerLen], t)
	if err != nil {
		return DealerMessage{}, err
	}
	ctBytes := b[innerLen:]
	if len(ctBytes) != n*32 {
		return DealerMessage{}, dkgerr.NewAttributed(dkgerr.KindDecryptionFailure, dealerIdx,
			"ciphertext section is %d bytes, want %d", len(ctBytes), n*32)
	}
	encShares := make([]curve.Scalar, n)
	for i := 0; i < n; i++ {
		encShares[i], _ = curve.ScalarFromBytes(ctBytes[i*32 : (i+1)*32])
	}
	return DealerMessage{Inner: inner, EncShares: encShares}, nil
}

// CoordinatorMessage is the round-1 broadcast the coordinator sends every
// participant: the SimplPedPop coordinator message plus, per recipient,
// the sum of every dealer's ciphertext to that recipient.
type CoordinatorMessage struct {
	Inner        simplpedpop.CoordinatorMessage
	EncSharesSum []curve.Scalar
}

// Bytes serializes m as its inner SimplPedPop coordinator message
// followed by one 32-byte summed ciphertext per recipient.
func (m CoordinatorMessage) Bytes() []byte {
	out := m.Inner.Bytes()
	for _, s := range m.EncSharesSum {
		b := s.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// ParseCoordinatorMessage decodes a wire-format coordinator message for a
// session with threshold t and n participants.
func ParseCoordinatorMessage(b []byte, t, n int) (CoordinatorMessage, error) {
	nonconst := t - 1
	if nonconst < 0 {
		nonconst = 0
	}
	innerLen := (n+nonconst)*33 + n*64
	if len(b) != innerLen+n*32 {
		return CoordinatorMessage{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"coordinator message is %d bytes, want %d", len(b), innerLen+n*32)
	}
	inner, err := simplpedpop.ParseCoordinatorMessage(b[:innerLen], t, n)
	if err != nil {
		return CoordinatorMessage{}, err
	}
	encSharesSum := make([]curve.Scalar, n)
	for i := 0; i < n; i++ {
		encSharesSum[i], _ = curve.ScalarFromBytes(b[innerLen+i*32 : innerLen+(i+1)*32])
	}
	return CoordinatorMessage{Inner: inner, EncSharesSum: encSharesSum}, nil
}

// CoordinatorStep aggregates n dealer messages: SimplPedPop aggregation
// of the inner messages, plus a coordinate-wise sum of encrypted shares
// per recipient. Forwarding enc_sum_i = Σ_d c_{d,i} instead of every
// individual ciphertext puts n scalars in the broadcast instead of n^2.
func CoordinatorStep(msgs []DealerMessage, t, n int) (CoordinatorMessage, error) {
	inner := make([]simplpedpop.DealerMessage, len(msgs))
	for d, m := range msgs {
		if len(m.EncShares) != n {
			return CoordinatorMessage{}, dkgerr.NewAttributed(dkgerr.KindInvalidSize, d,
				"dealer sent %d encrypted shares, want %d", len(m.EncShares), n)
		}
		inner[d] = m.Inner
	}
	innerCM, err := simplpedpop.CoordinatorStep(inner, t, n)
	if err != nil {
		return CoordinatorMessage{}, err
	}

	encSharesSum := make([]curve.Scalar, n)
	for i := 0; i < n; i++ {
		sum := curve.ScalarFromUint32(0)
		for _, m := range msgs {
			sum = sum.Add(m.EncShares[i])
		}
		encSharesSum[i] = sum
	}
	return CoordinatorMessage{Inner: innerCM, EncSharesSum: encSharesSum}, nil
}

// PreFinalize decrypts the participant's share sum from the coordinator
// message and then runs SimplPedPop's PreFinalize over it.
func PreFinalize(
	state simplpedpop.SignerState,
	cm CoordinatorMessage,
	deckey curve.Scalar,
	enckeysByDealer []curve.Point,
) (simplpedpop.DKGOutput, []byte, error) {
	if len(cm.EncSharesSum) != state.N {
		return simplpedpop.DKGOutput{}, nil, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"enc_shares_sum has %d entries, want %d", len(cm.EncSharesSum), state.N)
	}
	shareSum := encshare.DecryptSum(cm.EncSharesSum[state.Idx], deckey, enckeysByDealer, uint32(state.Idx))
	return simplpedpop.PreFinalize(state, cm.Inner, shareSum)
}

// CoordinatorOutput mirrors simplpedpop.CoordinatorOutput for a
// coordinator that only ever sees the aggregated (not secret) message.
func CoordinatorOutput(cm CoordinatorMessage, t, n int) (simplpedpop.DKGOutput, []byte) {
	return simplpedpop.CoordinatorOutput(cm.Inner, t, n)
}
