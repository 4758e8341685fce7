// Package simplpedpop implements a Pedersen-style DKG round that
// aggregates per-dealer Feldman VSS commitments (vss), checked against
// per-dealer proofs of possession (pop), assuming an external
// broadcast/equality check and authenticated point-to-point share
// delivery. It also owns the shared DKGOutput record and the session
// transcript η, since both are natural outputs of this aggregation step
// rather than anything the higher ChillDKG layer adds.
package simplpedpop

import (
	"encoding/binary"

	"github.com/dkgcore/chilldkg/internal/curve"
	"github.com/dkgcore/chilldkg/internal/dkgerr"
	"github.com/dkgcore/chilldkg/pop"
	"github.com/dkgcore/chilldkg/vss"
)

// MinSeedLen is the minimum byte length accepted for a dealer seed.
// Shorter input can't carry enough entropy for a uniform scalar and is
// rejected as a caller contract violation rather than silently accepted.
const MinSeedLen = 32

// zeroAuxRand is the default deterministic proof-of-possession nonce.
var zeroAuxRand [32]byte

// DKGOutput is the record common to SimplPedPop, EncPedPop and ChillDKG:
// a participant's final share sum (nil for a coordinator, which holds no
// secret), the group's threshold public key, and every participant's
// public share.
type DKGOutput struct {
	ShareSum  *curve.Scalar
	GroupPK   curve.Point
	Pubshares []curve.Point
}

// SignerState is a dealer's state between DealerStep and PreFinalize: the
// session shape plus the dealer's own commitment to its secret, needed to
// detect coordinator equivocation in PreFinalize step 2.
type SignerState struct {
	T, N, Idx   int
	ComToSecret curve.Point
}

// DealerMessage is the round-1 message a dealer sends the coordinator:
// its VSS commitment and proof of possession.
type DealerMessage struct {
	Commitment vss.Commitment
	Pop        [64]byte
}

// Bytes serializes m as t 33-byte compressed points followed by the
// 64-byte PoP.
func (m DealerMessage) Bytes() []byte {
	out := make([]byte, 0, len(m.Commitment.A)*33+64)
	for _, a := range m.Commitment.A {
		b := a.Bytes()
		out = append(out, b[:]...)
	}
	out = append(out, m.Pop[:]...)
	return out
}

// ParseDealerMessage decodes a wire-format dealer message for a
// threshold-t commitment, checking the overall length before touching
// any point encoding.
func ParseDealerMessage(b []byte, t int) (DealerMessage, error) {
	want := t*33 + 64
	if len(b) != want {
		return DealerMessage{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"dealer message is %d bytes, want %d", len(b), want)
	}
	a := make([]curve.Point, t)
	for j := 0; j < t; j++ {
		p, err := curve.PointFromBytes(b[j*33 : (j+1)*33])
		if err != nil {
			return DealerMessage{}, err
		}
		a[j] = p
	}
	var sig [64]byte
	copy(sig[:], b[t*33:])
	return DealerMessage{Commitment: vss.Commitment{A: a}, Pop: sig}, nil
}

// CoordinatorMessage is the round-1 broadcast the coordinator sends every
// participant: per-dealer commitments-to-secrets (kept separate so PoPs
// remain checkable), the coordinate-wise sum of non-constant commitment
// terms, and every dealer's PoP.
type CoordinatorMessage struct {
	ComsToSecrets []curve.Point
	SumNonconst   []curve.Point
	Pops          [][64]byte
}

// Bytes serializes m as the per-dealer commitments-to-secrets, the summed
// non-constant commitment terms, then every dealer's PoP.
func (m CoordinatorMessage) Bytes() []byte {
	out := make([]byte, 0, (len(m.ComsToSecrets)+len(m.SumNonconst))*33+len(m.Pops)*64)
	for _, p := range m.ComsToSecrets {
		b := p.Bytes()
		out = append(out, b[:]...)
	}
	for _, p := range m.SumNonconst {
		b := p.Bytes()
		out = append(out, b[:]...)
	}
	for _, s := range m.Pops {
		out = append(out, s[:]...)
	}
	return out
}

// ParseCoordinatorMessage decodes a wire-format coordinator message for a
// session with threshold t and n participants, checking the overall
// length before touching any point encoding.
func ParseCoordinatorMessage(b []byte, t, n int) (CoordinatorMessage, error) {
	nonconst := t - 1
	if nonconst < 0 {
		nonconst = 0
	}
	want := (n+nonconst)*33 + n*64
	if len(b) != want {
		return CoordinatorMessage{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"coordinator message is %d bytes, want %d", len(b), want)
	}
	comsToSecrets := make([]curve.Point, n)
	for i := 0; i < n; i++ {
		p, err := curve.PointFromBytes(b[i*33 : (i+1)*33])
		if err != nil {
			return CoordinatorMessage{}, err
		}
		comsToSecrets[i] = p
	}
	off := n * 33
	sumNonconst := make([]curve.Point, nonconst)
	for j := 0; j < nonconst; j++ {
		p, err := curve.PointFromBytes(b[off+j*33 : off+(j+1)*33])
		if err != nil {
			return CoordinatorMessage{}, err
		}
		sumNonconst[j] = p
	}
	off += nonconst * 33
	pops := make([][64]byte, n)
	for i := 0; i < n; i++ {
		copy(pops[i][:], b[off+i*64:off+(i+1)*64])
	}
	return CoordinatorMessage{ComsToSecrets: comsToSecrets, SumNonconst: sumNonconst, Pops: pops}, nil
}

// DealerStep runs the dealer half of SimplPedPop: derive a fresh VSS
// polynomial from seed, produce a PoP over its constant term, and emit n
// shares. The polynomial itself is not returned: its coefficients are
// zeroized before DealerStep returns, once the shares are emitted.
func DealerStep(seed []byte, t, n, idx int) (SignerState, DealerMessage, []curve.Scalar, error) {
	if len(seed) < MinSeedLen {
		return SignerState{}, DealerMessage{}, nil, dkgerr.NewUnattributed(dkgerr.KindRandomnessFailure,
			"seed is %d bytes, want at least %d", len(seed), MinSeedLen)
	}
	poly, commit, err := vss.Generate(seed, t)
	if err != nil {
		return SignerState{}, DealerMessage{}, nil, err
	}
	defer poly.Zeroize()

	sig, err := pop.Prove(poly.Coeffs[0], uint32(idx), zeroAuxRand)
	if err != nil {
		return SignerState{}, DealerMessage{}, nil, err
	}
	shares := poly.Shares(n)

	state := SignerState{T: t, N: n, Idx: idx, ComToSecret: commit.A[0]}
	msg := DealerMessage{Commitment: commit, Pop: sig}
	return state, msg, shares, nil
}

// CoordinatorStep aggregates n dealer messages: it keeps each dealer's
// commitment-to-secret separate (so PoPs stay checkable) but sums the
// non-constant commitment terms coordinate-wise, following Pedersen's
// aggregation from "Non-Interactive and Information-Theoretic Secure
// Verifiable Secret Sharing" §5.1.
func CoordinatorStep(msgs []DealerMessage, t, n int) (CoordinatorMessage, error) {
	if len(msgs) != n {
		return CoordinatorMessage{}, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"expected %d dealer messages, got %d", n, len(msgs))
	}
	comsToSecrets := make([]curve.Point, n)
	pops := make([][64]byte, n)
	for d, m := range msgs {
		if m.Commitment.Threshold() != t {
			return CoordinatorMessage{}, dkgerr.NewAttributed(dkgerr.KindInvalidSize, d,
				"commitment has %d elements, want %d", m.Commitment.Threshold(), t)
		}
		comsToSecrets[d] = m.Commitment.CommitmentToSecret()
		pops[d] = m.Pop
	}
	sumNonconst := make([]curve.Point, 0)
	if t > 1 {
		sumNonconst = make([]curve.Point, t-1)
		for j := 0; j < t-1; j++ {
			terms := make([]curve.Point, n)
			for d, m := range msgs {
				terms[d] = m.Commitment.A[j+1]
			}
			sumNonconst[j] = curve.SumPoints(terms)
		}
	}
	return CoordinatorMessage{ComsToSecrets: comsToSecrets, SumNonconst: sumNonconst, Pops: pops}, nil
}

// AssembleSumCommitment reconstructs the sum VSS commitment (Σ_d A0_d,
// sum_nonconst...) a coordinator message carries.
func AssembleSumCommitment(cm CoordinatorMessage) vss.Commitment {
	a0 := curve.SumPoints(cm.ComsToSecrets)
	a := make([]curve.Point, 0, 1+len(cm.SumNonconst))
	a = append(a, a0)
	a = append(a, cm.SumNonconst...)
	return vss.Commitment{A: a}
}

// Transcript computes η = be32(t) ‖ serialize(sum_commitment), the
// session digest two honest participants agree on iff they accepted the
// same session.
func Transcript(t int, sumCommit vss.Commitment) []byte {
	out := make([]byte, 4, 4+len(sumCommit.A)*33)
	binary.BigEndian.PutUint32(out, uint32(t))
	for _, a := range sumCommit.A {
		b := a.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// GroupPubKeyAndPubshares derives the group public key (sum commitment's
// A0) and every participant's public share by evaluating the sum
// commitment at 1..n in the exponent.
func GroupPubKeyAndPubshares(sumCommit vss.Commitment, n int) (curve.Point, []curve.Point) {
	pubshares := make([]curve.Point, n)
	for i := 0; i < n; i++ {
		pubshares[i] = vss.EvalCommitment(i+1, sumCommit)
	}
	return sumCommit.A[0], pubshares
}

// PreFinalize runs a participant's pre-finalize step: it validates the
// coordinator message structurally and against PoPs, then verifies the
// participant's share sum against the aggregated commitment and derives
// the group key, pubshares and transcript.
//
// The structural size checks produce Unattributed InvalidSize errors. The
// own-commitment and PoP checks each produce an Attributed error naming
// the culprit index; the final VSS-verify failure is
// Unattributed because any dealer could be responsible for a share sum
// that doesn't match the aggregated commitment.
func PreFinalize(state SignerState, cm CoordinatorMessage, shareSum curve.Scalar) (DKGOutput, []byte, error) {
	t, n, idx := state.T, state.N, state.Idx

	if len(cm.ComsToSecrets) != n {
		return DKGOutput{}, nil, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"coms_to_secrets has %d entries, want %d", len(cm.ComsToSecrets), n)
	}
	wantNonconst := t - 1
	if wantNonconst < 0 {
		wantNonconst = 0
	}
	if len(cm.SumNonconst) != wantNonconst {
		return DKGOutput{}, nil, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"sum_nonconst has %d entries, want %d", len(cm.SumNonconst), wantNonconst)
	}
	if len(cm.Pops) != n {
		return DKGOutput{}, nil, dkgerr.NewUnattributed(dkgerr.KindInvalidSize,
			"pops has %d entries, want %d", len(cm.Pops), n)
	}

	if !cm.ComsToSecrets[idx].Equal(state.ComToSecret) {
		return DKGOutput{}, nil, dkgerr.NewAttributed(dkgerr.KindInvalidContribution, idx,
			"coordinator sent unexpected commitment-to-secret for local index")
	}

	for i := 0; i < n; i++ {
		if i == idx {
			continue // no need to check our own PoP
		}
		if cm.ComsToSecrets[i].IsInfinity() {
			return DKGOutput{}, nil, dkgerr.NewAttributed(dkgerr.KindInvalidContribution, i,
				"participant sent identity-element commitment")
		}
		if !pop.Verify(cm.Pops[i], cm.ComsToSecrets[i], uint32(i)) {
			return DKGOutput{}, nil, dkgerr.NewAttributed(dkgerr.KindInvalidContribution, i,
				"participant sent invalid proof of possession")
		}
	}

	sumCommit := AssembleSumCommitment(cm)
	if !vss.Verify(idx+1, shareSum, sumCommit) {
		return DKGOutput{}, nil, dkgerr.NewUnattributed(dkgerr.KindVSSVerify,
			"share sum inconsistent with aggregated commitment")
	}

	groupPK, pubshares := GroupPubKeyAndPubshares(sumCommit, n)
	eta := Transcript(t, sumCommit)
	return DKGOutput{ShareSum: &shareSum, GroupPK: groupPK, Pubshares: pubshares}, eta, nil
}

// CoordinatorOutput computes the coordinator's own view of the DKG
// output (no secret share) plus the transcript, from its own aggregated
// message.
func CoordinatorOutput(cm CoordinatorMessage, t, n int) (DKGOutput, []byte) {
	sumCommit := AssembleSumCommitment(cm)
	groupPK, pubshares := GroupPubKeyAndPubshares(sumCommit, n)
	eta := Transcript(t, sumCommit)
	return DKGOutput{ShareSum: nil, GroupPK: groupPK, Pubshares: pubshares}, eta
}
